package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	// Verify that globalTestMetrics (created via NewWorkerMetrics) is initialized correctly.
	// We use the global instance to avoid duplicate Prometheus registration.
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewWorkerMetrics returned nil")
	}

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}

	if metrics.JobsDequeuedTotal == nil {
		t.Error("JobsDequeuedTotal is nil")
	}

	if metrics.JobOutcomesTotal == nil {
		t.Error("JobOutcomesTotal is nil")
	}

	if metrics.JobDurationSeconds == nil {
		t.Error("JobDurationSeconds is nil")
	}

	if metrics.LastSuccessTimestamp == nil {
		t.Error("LastSuccessTimestamp is nil")
	}

	// Should not panic when calling MustRegister (metrics are auto-registered via promauto)
	metrics.MustRegister()
}

func TestWorkerMetrics_RecordJobDequeued(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_jobs_dequeued_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{JobsDequeuedTotal: counter}

	metrics.RecordJobDequeued()
	metrics.RecordJobDequeued()
	metrics.RecordJobDequeued()

	total := testutil.ToFloat64(metrics.JobsDequeuedTotal)
	if total != 3 {
		t.Errorf("Expected total 3, got %f", total)
	}
}

func TestWorkerMetrics_RecordJobOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_job_outcomes_total",
		Help: "Test counter",
	}, []string{"outcome"})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{JobOutcomesTotal: counter}

	metrics.RecordJobOutcome("acked")
	metrics.RecordJobOutcome("acked")
	metrics.RecordJobOutcome("retried")
	metrics.RecordJobOutcome("dropped")

	ackedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("acked"))
	if ackedCount != 2 {
		t.Errorf("Expected acked count 2, got %f", ackedCount)
	}

	retriedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("retried"))
	if retriedCount != 1 {
		t.Errorf("Expected retried count 1, got %f", retriedCount)
	}

	droppedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("dropped"))
	if droppedCount != 1 {
		t.Errorf("Expected dropped count 1, got %f", droppedCount)
	}
}

func TestWorkerMetrics_RecordJobDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_job_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	})
	reg.MustRegister(histogram)

	metrics := &WorkerMetrics{JobDurationSeconds: histogram}

	metrics.RecordJobDuration(0.8)
	metrics.RecordJobDuration(12.0)
	metrics.RecordJobDuration(45.0)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_worker_job_duration_seconds" {
			found = true
			if mf.GetType() != 4 { // 4 = HISTOGRAM
				t.Errorf("Expected histogram type, got %v", mf.GetType())
			}
			if len(mf.GetMetric()) == 0 {
				t.Error("Expected metrics to be recorded")
			}
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}

	if !found {
		t.Error("Histogram metric not found in registry")
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_job_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &WorkerMetrics{LastSuccessTimestamp: gauge}

	initialValue := testutil.ToFloat64(metrics.LastSuccessTimestamp)
	if initialValue != 0 {
		t.Errorf("Expected initial value 0, got %f", initialValue)
	}

	metrics.RecordLastSuccess()

	afterValue := testutil.ToFloat64(metrics.LastSuccessTimestamp)
	if afterValue <= 0 {
		t.Errorf("Expected positive timestamp, got %f", afterValue)
	}
}

func TestWorkerMetrics_MultipleJobCycles(t *testing.T) {
	reg := prometheus.NewRegistry()

	dequeued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_jobs_dequeued_multiple",
		Help: "Test counter",
	})
	reg.MustRegister(dequeued)

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_job_outcomes_multiple",
		Help: "Test counter",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_job_duration_multiple",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	})
	reg.MustRegister(duration)

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_job_last_success_multiple",
		Help: "Test gauge",
	})
	reg.MustRegister(lastSuccess)

	metrics := &WorkerMetrics{
		JobsDequeuedTotal:    dequeued,
		JobOutcomesTotal:     outcomes,
		JobDurationSeconds:   duration,
		LastSuccessTimestamp: lastSuccess,
	}

	// Job 1: acked
	metrics.RecordJobDequeued()
	metrics.RecordJobDuration(2.0)
	metrics.RecordJobOutcome("acked")
	metrics.RecordLastSuccess()

	// Job 2: acked
	metrics.RecordJobDequeued()
	metrics.RecordJobDuration(1.5)
	metrics.RecordJobOutcome("acked")
	metrics.RecordLastSuccess()

	// Job 3: retried (no last-success update)
	metrics.RecordJobDequeued()
	metrics.RecordJobDuration(0.2)
	metrics.RecordJobOutcome("retried")

	dequeuedTotal := testutil.ToFloat64(metrics.JobsDequeuedTotal)
	if dequeuedTotal != 3 {
		t.Errorf("Expected 3 dequeued jobs, got %f", dequeuedTotal)
	}

	ackedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("acked"))
	if ackedCount != 2 {
		t.Errorf("Expected 2 acked jobs, got %f", ackedCount)
	}

	retriedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("retried"))
	if retriedCount != 1 {
		t.Errorf("Expected 1 retried job, got %f", retriedCount)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_worker_job_duration_multiple" {
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 duration observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}

	lastSuccessValue := testutil.ToFloat64(metrics.LastSuccessTimestamp)
	if lastSuccessValue <= 0 {
		t.Errorf("Expected positive last success timestamp, got %f", lastSuccessValue)
	}
}

func TestWorkerMetrics_ConcurrentAccess(t *testing.T) {
	reg := prometheus.NewRegistry()

	dequeued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_jobs_dequeued_concurrent",
		Help: "Test counter",
	})
	reg.MustRegister(dequeued)

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_job_outcomes_concurrent",
		Help: "Test counter",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_job_duration_concurrent",
		Help:    "Test histogram",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	})
	reg.MustRegister(duration)

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_job_last_success_concurrent",
		Help: "Test gauge",
	})
	reg.MustRegister(lastSuccess)

	metrics := &WorkerMetrics{
		JobsDequeuedTotal:    dequeued,
		JobOutcomesTotal:     outcomes,
		JobDurationSeconds:   duration,
		LastSuccessTimestamp: lastSuccess,
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			metrics.RecordJobDequeued()
			metrics.RecordJobDuration(1.0)
			metrics.RecordJobOutcome("acked")
			metrics.RecordLastSuccess()
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	dequeuedTotal := testutil.ToFloat64(metrics.JobsDequeuedTotal)
	if dequeuedTotal != 10 {
		t.Errorf("Expected 10 dequeued jobs, got %f", dequeuedTotal)
	}

	ackedCount := testutil.ToFloat64(metrics.JobOutcomesTotal.WithLabelValues("acked"))
	if ackedCount != 10 {
		t.Errorf("Expected 10 acked jobs, got %f", ackedCount)
	}
}
