// Package query answers read requests against the snapshot file. Every call
// re-reads the file; nothing is cached between calls.
package query

import (
	"errors"

	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
)

// ErrNotFound is returned by FindByName when no pool matches.
var ErrNotFound = errors.New("pool not found")

// Source reads the persisted snapshot.
type Source interface {
	Raw() ([]byte, error)
	Load() (pool.Snapshot, error)
}

// Match is a pool paired with the timestamp of the snapshot it came from.
type Match struct {
	Timestamp string      `json:"timestamp"`
	Pool      pool.Record `json:"pool_info"`
}

type Service struct {
	src Source
}

func New(src Source) *Service {
	return &Service{src: src}
}

// ListAll returns the snapshot file content verbatim once it has been
// checked to decode.
func (s *Service) ListAll() ([]byte, error) {
	return s.src.Raw()
}

// Snapshot returns the decoded current snapshot.
func (s *Service) Snapshot() (pool.Snapshot, error) {
	return s.src.Load()
}

// FindByName returns the first pool whose name matches exactly
// (case-sensitive).
func (s *Service) FindByName(name string) (Match, error) {
	snap, err := s.src.Load()
	if err != nil {
		return Match{}, err
	}
	p, ok := snap.Find(name)
	if !ok {
		return Match{}, ErrNotFound
	}
	return Match{Timestamp: snap.Timestamp, Pool: p}, nil
}
