// Package scraper reads pool statistics from the DeDust pools page, which is
// rendered client-side and therefore needs a real browser session.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
)

var (
	// ErrExtractionTimeout is returned when the pools table never appears
	// within the wait timeout.
	ErrExtractionTimeout = errors.New("timeout waiting for pools table")
	// ErrShowAllMissing is returned when the "View all" control cannot be
	// activated.
	ErrShowAllMissing = errors.New("view all control not clickable")
	// ErrSession wraps browser launch and session-level faults.
	ErrSession = errors.New("browser session failed")
)

// Session is one browser session. It is owned by a single Extract call.
type Session interface {
	// Render loads the pools page, expands the full listing and returns the
	// resulting document HTML.
	Render(ctx context.Context) (string, error)
	Close() error
}

// Opener starts browser sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Extractor runs one browser session per extraction.
type Extractor struct {
	opener Opener
	logger *slog.Logger

	mu   sync.Mutex
	open map[Session]struct{}
}

func New(opener Opener, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		opener: opener,
		logger: logger,
		open:   make(map[Session]struct{}),
	}
}

// Extract scrapes the pools table. Per-row faults are logged and the row is
// skipped; anything that breaks the session is returned as an error.
func (e *Extractor) Extract(ctx context.Context) (records []pool.Record, err error) {
	sess, err := e.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSession, err)
	}
	e.track(sess)
	defer e.release(sess)

	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("%w: panic: %v", ErrSession, r)
		}
	}()

	page, err := sess.Render(ctx)
	if err != nil {
		return nil, err
	}

	records, rowErrs, err := ParseRows(page)
	if err != nil {
		return nil, err
	}
	for _, rerr := range rowErrs {
		e.logger.Warn("error parsing pool", "error", rerr)
	}
	return records, nil
}

// Collect is Extract with every fault reduced to a log line and an empty
// result.
func (e *Extractor) Collect(ctx context.Context) []pool.Record {
	records, err := e.Extract(ctx)
	if err != nil {
		if errors.Is(err, ErrExtractionTimeout) {
			e.logger.Error("timeout waiting for elements to load", "error", err)
		} else {
			e.logger.Error("extract pools failed", "error", err)
		}
		return []pool.Record{}
	}
	return records
}

// OpenSessions reports how many sessions are currently held.
func (e *Extractor) OpenSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// Shutdown closes any session still held, e.g. when the process is
// terminating mid-cycle.
func (e *Extractor) Shutdown() {
	e.mu.Lock()
	held := make([]Session, 0, len(e.open))
	for s := range e.open {
		held = append(held, s)
	}
	e.mu.Unlock()

	for _, s := range held {
		e.release(s)
	}
}

func (e *Extractor) track(s Session) {
	e.mu.Lock()
	e.open[s] = struct{}{}
	e.mu.Unlock()
}

func (e *Extractor) release(s Session) {
	e.mu.Lock()
	_, held := e.open[s]
	delete(e.open, s)
	e.mu.Unlock()

	if !held {
		return
	}
	if err := s.Close(); err != nil {
		e.logger.Error("error closing browser session", "error", err)
	}
}
