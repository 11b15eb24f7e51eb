package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web3-frozen/dedust-pool-monitor/internal/handler"
	"github.com/web3-frozen/dedust-pool-monitor/internal/middleware"
	"github.com/web3-frozen/dedust-pool-monitor/internal/query"
)

func newRouter(q *query.Service, runs handler.RunLister, origin string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(origin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handler.Health())
	r.Get("/readyz", handler.Ready(q))

	r.Get("/all_pools", handler.AllPools(q, logger))
	r.Get("/pool_info", handler.PoolInfo(q, logger))

	if runs != nil {
		r.Get("/runs", handler.ListRuns(runs))
	}
	return r
}
