// Package snapshot persists the latest pool snapshot as a single JSON file.
//
// The file holds a JSON array with exactly one snapshot object. Each Save
// truncates and rewrites it in place; readers may observe a partial file
// while a write is in progress.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
)

// DefaultPath is the snapshot file shared by the collector and the API.
const DefaultPath = "pool_data.json"

var (
	// ErrNoSnapshot means the snapshot file does not exist yet.
	ErrNoSnapshot = errors.New("snapshot file not found")
	// ErrMalformed means the file exists but is not a valid snapshot.
	ErrMalformed = errors.New("snapshot file malformed")
)

// Store reads and writes the snapshot file.
type Store struct {
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Save replaces the file content with a new snapshot of records stamped
// with the current local time.
func (s *Store) Save(records []pool.Record) (pool.Snapshot, error) {
	snap := pool.NewSnapshot(s.now(), records)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode([]pool.Snapshot{snap}); err != nil {
		return pool.Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return pool.Snapshot{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return pool.Snapshot{}, fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return pool.Snapshot{}, fmt.Errorf("close %s: %w", s.path, err)
	}
	return snap, nil
}

// Raw returns the file bytes exactly as stored. The content must decode as
// a snapshot; a truncated or malformed file yields ErrMalformed.
func (s *Store) Raw() ([]byte, error) {
	b, err := s.read()
	if err != nil {
		return nil, err
	}
	if _, err := decode(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Load reads and decodes the current snapshot.
func (s *Store) Load() (pool.Snapshot, error) {
	b, err := s.read()
	if err != nil {
		return pool.Snapshot{}, err
	}
	return decode(b)
}

func (s *Store) read() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return b, nil
}

func decode(b []byte) (pool.Snapshot, error) {
	var snaps []pool.Snapshot
	if err := json.Unmarshal(b, &snaps); err != nil {
		return pool.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(snaps) == 0 {
		return pool.Snapshot{}, fmt.Errorf("%w: empty array", ErrMalformed)
	}
	return snaps[0], nil
}
