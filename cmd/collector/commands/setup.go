package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/web3-frozen/dedust-pool-monitor/internal/collector"
	"github.com/web3-frozen/dedust-pool-monitor/internal/config"
	"github.com/web3-frozen/dedust-pool-monitor/internal/lease"
	"github.com/web3-frozen/dedust-pool-monitor/internal/scraper"
	"github.com/web3-frozen/dedust-pool-monitor/internal/snapshot"
	"github.com/web3-frozen/dedust-pool-monitor/internal/store"
)

const (
	leaseTTL  = 10 * time.Minute
	runMaxAge = 30 * 24 * time.Hour
)

// app holds the process-scoped components shared by the subcommands.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	extractor *scraper.Extractor
	collector *collector.Collector
	db        *store.Store
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	a := &app{cfg: cfg}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, func() { f.Close() })
		out = io.MultiWriter(os.Stdout, f)
	}
	a.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("logger", "PoolCollector")

	var opts []collector.Option

	if cfg.RedisURL != "" {
		l, err := lease.New(cfg.RedisURL, cfg.RedisPassword, lease.DefaultKey, leaseTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { l.Close() })
		opts = append(opts, collector.WithLocker(l))
		a.logger.Info("redis connected for collection lease")
	}

	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.db = db
		opts = append(opts, collector.WithRecorder(db))
		a.logger.Info("database connected and migrated")
	}

	chrome := scraper.NewChrome(scraper.ChromeConfig{
		URL:         cfg.SourceURL,
		WaitTimeout: cfg.WaitTimeout,
		ExecPath:    cfg.ChromePath,
		Logger:      a.logger,
	})
	a.extractor = scraper.New(chrome, a.logger)
	a.closers = append(a.closers, a.extractor.Shutdown)

	a.collector = collector.New(
		a.extractor,
		snapshot.New(cfg.SnapshotPath),
		collector.Config{Interval: cfg.Interval},
		a.logger,
		opts...,
	)
	return a, nil
}
