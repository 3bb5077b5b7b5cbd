package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "examdesk_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examdesk_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// AttemptTransitions counts attempt lifecycle events: started, resumed, saved, submitted, abandoned, imported.
	AttemptTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examdesk_attempt_transitions_total",
			Help: "Attempt lifecycle transitions",
		},
		[]string{"event"},
	)

	// AttemptOutcomes counts graded submissions by outcome (pass, fail, ungraded).
	AttemptOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examdesk_attempt_outcomes_total",
			Help: "Submitted attempts by outcome",
		},
		[]string{"outcome"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examdesk_cache_hits_total",
			Help: "Total number of exam cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examdesk_cache_misses_total",
			Help: "Total number of exam cache misses",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "examdesk_live_connections",
			Help: "Open websocket connections on the live attempt feed",
		},
	)
)

// RecordDBOperation records the duration of a database operation
func RecordDBOperation(operation string, table string, startTime time.Time) {
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}

// ObserveDB starts timing a database operation; call the returned func when it finishes.
func ObserveDB(operation, table string) func() {
	start := time.Now()
	return func() { RecordDBOperation(operation, table, start) }
}
