// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Business metrics track pipeline-specific operations
var (
	// StoriesFetchedTotal counts candidates a source adapter returned,
	// before dedup/persistence.
	StoriesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_fetched_total",
			Help: "Total number of candidate stories returned by source adapters",
		},
		[]string{"source", "project_id"},
	)

	// StoriesQueuedTotal counts candidates persisted to the audit store
	// and handed to the task queue.
	StoriesQueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_queued_total",
			Help: "Total number of stories persisted and enqueued for classification",
		},
		[]string{"source", "project_id"},
	)

	// StoriesScoredTotal counts classifier runs by outcome.
	StoriesScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_scored_total",
			Help: "Total number of stories scored by the classifier",
		},
		[]string{"project_id", "result"}, // result: success, model_error
	)

	// StoriesAboveThresholdTotal counts stories that cleared a project's
	// min_confidence.
	StoriesAboveThresholdTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_above_threshold_total",
			Help: "Total number of stories scored above the project confidence threshold",
		},
		[]string{"project_id"},
	)

	// StoriesPostedTotal counts stories successfully posted to a
	// project's update_post_url, by outcome.
	StoriesPostedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_posted_total",
			Help: "Total number of above-threshold stories posted to the central server",
		},
		[]string{"project_id", "result"}, // result: success, transient_error, permanent_error
	)

	// SourceFetchDuration measures time spent in one source adapter call.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Time taken for a source adapter to return candidates",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// SourceFetchErrors counts errors raised by a source adapter.
	SourceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_errors_total",
			Help: "Total number of source adapter errors",
		},
		[]string{"source", "error_type"},
	)

	// ContentFetchAttemptsTotal counts content extraction attempts by result.
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content extraction attempts",
		},
		[]string{"result"}, // result: success, failure, cache_hit
	)

	// ContentFetchDuration measures time to extract article content.
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to extract article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures extracted content size in bytes.
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Extracted article content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)

	// QueueDepth tracks the number of jobs waiting in the task queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs currently waiting in the task queue",
		},
	)

	// ModelLoadFailuresTotal counts classifier artifact load failures by
	// model id, so a corrupt artifact shows up immediately in monitoring.
	ModelLoadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_load_failures_total",
			Help: "Total number of classifier model/vectorizer artifact load failures",
		},
		[]string{"model_id", "reason"},
	)

	// SchedulerRunDuration measures the wall-clock time of one scheduler
	// invocation across all projects.
	SchedulerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Time taken for one scheduler run across all projects",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"source"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
