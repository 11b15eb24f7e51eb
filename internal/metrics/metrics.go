package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dedust_pool_monitor"

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})

	// /all_pools returns the whole snapshot file, so its size tracks the
	// number of listed pools.
	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response body size in bytes.",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"path"})
)

// ── Collection cycle metrics ───────────────────────────────────────────

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "collector",
		Name:      "cycles_total",
		Help:      "Collection cycles by outcome (saved, empty, failed, skipped, error).",
	}, []string{"status"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "collector",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a collection cycle in seconds.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	JobsMissedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "collector",
		Name:      "jobs_missed_total",
		Help:      "Scheduled ticks dropped because a cycle was still running or dispatch was late.",
	})

	PoolsCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "collector",
		Name:      "pools",
		Help:      "Number of pools in the last saved snapshot.",
	})

	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "collector",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last saved snapshot.",
	})
)

// ── Snapshot read metrics ──────────────────────────────────────────────

var (
	SnapshotReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "read_errors_total",
		Help:      "Snapshot file reads that failed, by reason.",
	}, []string{"reason"})

	// Found and not-found lookups both answer 200, so the status code
	// alone cannot tell them apart.
	PoolLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "pool_lookups_total",
		Help:      "Pool lookups by result (found, not_found, invalid, unavailable).",
	}, []string{"result"})
)
