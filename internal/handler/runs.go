package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/web3-frozen/dedust-pool-monitor/internal/store"
)

// RunLister lists recorded collection cycles.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

func ListRuns(s RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			l, err := strconv.Atoi(v)
			if err != nil || l <= 0 || l > 500 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			limit = l
		}

		runs, err := s.ListRuns(r.Context(), limit)
		if err != nil {
			http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		writeJSON(w, runs)
	}
}
