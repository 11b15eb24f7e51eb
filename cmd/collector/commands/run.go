package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collects immediately and then on every interval until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.db != nil {
			if n, err := a.db.PruneRuns(cmd.Context(), runMaxAge); err != nil {
				a.logger.Warn("prune collection runs failed", "error", err)
			} else if n > 0 {
				a.logger.Info("pruned collection runs", "deleted", n)
			}
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			a.collector.Run(ctx)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-done:
		}

		a.logger.Info("stopping scheduler...")
		cancel()
		a.extractor.Shutdown()

		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			a.logger.Warn("collection cycle did not finish before shutdown timeout")
		}
		return nil
	},
}
