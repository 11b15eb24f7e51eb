package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/web3-frozen/dedust-pool-monitor/internal/config"
	"github.com/web3-frozen/dedust-pool-monitor/internal/handler"
	"github.com/web3-frozen/dedust-pool-monitor/internal/query"
	"github.com/web3-frozen/dedust-pool-monitor/internal/snapshot"
	"github.com/web3-frozen/dedust-pool-monitor/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collection run history is optional; the pool API only needs the file.
	var runs handler.RunLister
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runs, err = prepareRuns(ctx, db)
		if err != nil {
			logger.Error("failed to prepare database", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected and migrated")
	}

	q := query.New(snapshot.New(cfg.SnapshotPath))
	r := newRouter(q, runs, cfg.FrontendOrigin, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "snapshot", cfg.SnapshotPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
