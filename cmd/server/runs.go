package main

import (
	"context"
	"fmt"

	"github.com/web3-frozen/dedust-pool-monitor/internal/handler"
)

// runStore is the collection run log as the server needs it.
type runStore interface {
	handler.RunLister
	Migrate(ctx context.Context) error
}

// prepareRuns makes sure the run table exists before /runs is served, so the
// server does not depend on the collector having started first.
func prepareRuns(ctx context.Context, s runStore) (handler.RunLister, error) {
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}
