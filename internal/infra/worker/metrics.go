package worker

import (
	"story-processor/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the queue-consumer worker
//. It embeds the standard ConfigMetrics for configuration monitoring
// and adds worker-specific metrics for job dequeue/classify/post tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_jobs_dequeued_total: Total jobs popped off the queue
//   - worker_job_outcomes_total: Total job outcomes by result (acked/retried/dropped)
//   - worker_job_duration_seconds: Duration histogram of one dequeue-to-ack/drop cycle
//   - worker_job_last_success_timestamp: Unix timestamp of the last acked job
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// JobsDequeuedTotal counts jobs popped off the queue, before processing.
	// Type: Counter
	JobsDequeuedTotal prometheus.Counter

	// JobOutcomesTotal counts how each dequeued job was resolved.
	// Type: Counter
	// Labels: outcome (acked, retried, dropped)
	JobOutcomesTotal *prometheus.CounterVec

	// JobDurationSeconds measures one dequeue-to-resolution cycle, covering
	// classification, optional entity extraction, and the publish POST.
	// Type: Histogram
	// Buckets tuned for a sub-minute classify+post contract.
	JobDurationSeconds prometheus.Histogram

	// LastSuccessTimestamp records the Unix timestamp of the last job
	// acked (i.e. successfully classified, thresholded, and published or
	// legitimately left below threshold).
	// Type: Gauge
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics
// initialized. Metrics are created but registration happens automatically
// via promauto; call MustRegister() only for API consistency with other
// Metrics types in this codebase.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobsDequeuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_jobs_dequeued_total",
			Help: "Total number of jobs popped off the ingestion queue",
		}),

		JobOutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_outcomes_total",
			Help: "Total number of job outcomes by result (acked/retried/dropped)",
		}, []string{"outcome"}),

		JobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of a dequeue-to-resolution cycle in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successfully acked job",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordJobDequeued increments the dequeued-job counter.
func (m *WorkerMetrics) RecordJobDequeued() {
	m.JobsDequeuedTotal.Inc()
}

// RecordJobOutcome increments the outcome counter for the given result.
// outcome should be one of "acked", "retried", or "dropped".
func (m *WorkerMetrics) RecordJobOutcome(outcome string) {
	m.JobOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordJobDuration observes the duration of one dequeue-to-resolution
// cycle. seconds should be measured end to end for a single job.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.JobDurationSeconds.Observe(seconds)
}

// RecordLastSuccess records the current time as the last successful
// (acked) job.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
