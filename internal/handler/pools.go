package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/web3-frozen/dedust-pool-monitor/internal/metrics"
	"github.com/web3-frozen/dedust-pool-monitor/internal/query"
	"github.com/web3-frozen/dedust-pool-monitor/internal/snapshot"
)

// AllPools serves the snapshot file as stored.
func AllPools(q *query.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := q.ListAll()
		if err != nil {
			snapshotUnavailable(w, logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// PoolInfo looks a pool up by exact name. An unknown pool is answered with
// 200 and an error payload.
func PoolInfo(q *query.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		if !values.Has("pool_name") {
			metrics.PoolLookupsTotal.WithLabelValues("invalid").Inc()
			http.Error(w, `{"error":"pool_name required"}`, http.StatusUnprocessableEntity)
			return
		}

		match, err := q.FindByName(values.Get("pool_name"))
		if errors.Is(err, query.ErrNotFound) {
			metrics.PoolLookupsTotal.WithLabelValues("not_found").Inc()
			writeJSON(w, map[string]string{"error": "Pool not found"})
			return
		}
		if err != nil {
			metrics.PoolLookupsTotal.WithLabelValues("unavailable").Inc()
			snapshotUnavailable(w, logger, err)
			return
		}
		metrics.PoolLookupsTotal.WithLabelValues("found").Inc()
		writeJSON(w, match)
	}
}

func snapshotUnavailable(w http.ResponseWriter, logger *slog.Logger, err error) {
	reason := "io"
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		reason = "missing"
	case errors.Is(err, snapshot.ErrMalformed):
		reason = "malformed"
	}
	metrics.SnapshotReadErrors.WithLabelValues(reason).Inc()
	logger.Error("read snapshot failed", "error", err)
	http.Error(w, `{"error":"snapshot unavailable"}`, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
