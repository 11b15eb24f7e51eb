// Package collector runs the pool scrape on a fixed interval and persists
// each non-empty result as the current snapshot.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/dedust-pool-monitor/internal/metrics"
	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
	"github.com/web3-frozen/dedust-pool-monitor/internal/store"
)

const (
	// JobID names the collection job in logs.
	JobID = "collect_pool_data"

	DefaultInterval     = 5 * time.Minute
	defaultMisfireGrace = time.Second
	recordTimeout       = 5 * time.Second
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one holds the single-flight lock.
var ErrCycleInProgress = errors.New("collection cycle already running")

// Extractor scrapes the current pool list. Each call owns its own browser
// session.
type Extractor interface {
	Extract(ctx context.Context) ([]pool.Record, error)
}

// Saver persists a snapshot.
type Saver interface {
	Save(records []pool.Record) (pool.Snapshot, error)
}

// Locker is a cross-process lease. ok is false when someone else holds it.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// RunRecorder stores cycle outcomes.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.Run) error
}

// Status is the outcome of one cycle.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// CycleResult describes one collection cycle.
type CycleResult struct {
	Status     Status
	Pools      int
	Snapshot   pool.Snapshot
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Config controls the scheduler.
type Config struct {
	// Interval between cycle starts. Default: 5 minutes.
	Interval time.Duration
	// MisfireGrace is how late a tick may be dispatched before it counts
	// as missed. Default: 1 second.
	MisfireGrace time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = defaultMisfireGrace
	}
}

// Collector owns the recurring collection job.
type Collector struct {
	extractor Extractor
	saver     Saver
	locker    Locker
	recorder  RunRecorder
	config    Config
	logger    *slog.Logger

	mu sync.Mutex
}

// Option wires optional collaborators.
type Option func(*Collector)

// WithLocker adds a cross-process lease around each cycle.
func WithLocker(l Locker) Option {
	return func(c *Collector) { c.locker = l }
}

// WithRecorder records every cycle outcome.
func WithRecorder(r RunRecorder) Option {
	return func(c *Collector) { c.recorder = r }
}

func New(ex Extractor, saver Saver, cfg Config, logger *slog.Logger, opts ...Option) *Collector {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		extractor: ex,
		saver:     saver,
		config:    cfg,
		logger:    logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run collects immediately, then on every interval tick. A tick that fires
// while a cycle is still running is logged as missed and dropped. Run
// returns after ctx is cancelled and the in-flight cycle has finished.
func (c *Collector) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	busy := make(chan struct{}, 1)
	cycleCtx := context.WithoutCancel(ctx)

	dispatch := func(scheduled time.Time) {
		if late := time.Since(scheduled); late > c.config.MisfireGrace {
			c.jobMissed(scheduled, fmt.Sprintf("dispatched %s late", late.Round(time.Millisecond)))
			return
		}
		select {
		case busy <- struct{}{}:
		default:
			c.jobMissed(scheduled, "previous cycle still running")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-busy }()
			c.RunOnce(cycleCtx)
		}()
	}

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.logger.Info("scheduler started", "job_id", JobID, "interval", c.config.Interval)
	dispatch(time.Now())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping scheduler", "job_id", JobID)
			return
		case t := <-ticker.C:
			dispatch(t)
		}
	}
}

func (c *Collector) jobMissed(scheduled time.Time, reason string) {
	metrics.JobsMissedTotal.Inc()
	c.logger.Warn("job missed",
		"job_id", JobID,
		"scheduled", scheduled.Format(time.RFC3339),
		"reason", reason,
	)
}

// RunOnce runs a single collection cycle. Concurrent calls never overlap:
// a call made while another cycle runs returns StatusSkipped with
// ErrCycleInProgress and opens no browser session.
func (c *Collector) RunOnce(ctx context.Context) (res CycleResult) {
	res.StartedAt = time.Now()

	if !c.mu.TryLock() {
		res.Status = StatusSkipped
		res.Err = ErrCycleInProgress
		res.FinishedAt = time.Now()
		c.logger.Warn("collection skipped", "job_id", JobID, "reason", res.Err)
		metrics.CyclesTotal.WithLabelValues(string(res.Status)).Inc()
		return res
	}
	defer c.mu.Unlock()

	defer c.finish(ctx, &res)
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusError
			res.Pools = 0
			res.Err = fmt.Errorf("panic: %v", r)
			c.logger.Error("job error", "job_id", JobID, "error", res.Err)
		}
	}()

	if c.locker != nil {
		release, ok, err := c.locker.Acquire(ctx)
		if err != nil {
			res.Status = StatusSkipped
			res.Err = fmt.Errorf("acquire lease: %w", err)
			return res
		}
		if !ok {
			res.Status = StatusSkipped
			res.Err = ErrCycleInProgress
			return res
		}
		defer release()
	}

	c.logger.Info("starting data collection", "job_id", JobID)

	records, err := c.extractor.Extract(ctx)
	if err != nil {
		res.Err = err
		c.logger.Error("extract pools failed", "error", err)
	}

	if len(records) == 0 {
		res.Status = StatusEmpty
		c.logger.Warn("no data collected")
		return res
	}

	snap, err := c.saver.Save(records)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		c.logger.Error("error saving data", "error", err)
		return res
	}

	res.Status = StatusSaved
	res.Pools = len(snap.Pools)
	res.Snapshot = snap
	c.logger.Info("data successfully saved", "pools", res.Pools, "timestamp", snap.Timestamp)
	return res
}

func (c *Collector) finish(ctx context.Context, res *CycleResult) {
	res.FinishedAt = time.Now()
	duration := res.FinishedAt.Sub(res.StartedAt)

	metrics.CyclesTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.CycleDuration.Observe(duration.Seconds())
	if res.Status == StatusSaved {
		metrics.PoolsCollected.Set(float64(res.Pools))
		metrics.LastSuccess.Set(float64(res.FinishedAt.Unix()))
	}
	if res.Status == StatusSkipped {
		c.logger.Warn("collection skipped", "job_id", JobID, "reason", res.Err)
	}

	if c.recorder == nil {
		return
	}
	run := store.Run{
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Status:     string(res.Status),
		Pools:      res.Pools,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.recorder.RecordRun(rctx, run); err != nil {
		c.logger.Error("record collection run failed", "error", err)
	}
}
