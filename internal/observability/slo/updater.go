package slo

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Run recomputes the SLO gauges from the default Prometheus registry on a
// fixed interval until ctx is cancelled. It derives availability and error
// rate from http_requests_total, and p95/p99 latency from the
// http_request_duration_seconds histogram.
func Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update(prometheus.DefaultGatherer)
		}
	}
}

func update(gatherer prometheus.Gatherer) {
	families, err := gatherer.Gather()
	if err != nil {
		return
	}

	var total, errors float64
	var histogram *dto.Histogram

	for _, family := range families {
		switch family.GetName() {
		case "http_requests_total":
			for _, m := range family.GetMetric() {
				v := m.GetCounter().GetValue()
				total += v
				for _, label := range m.GetLabel() {
					if label.GetName() == "status" && len(label.GetValue()) > 0 && label.GetValue()[0] == '5' {
						errors += v
					}
				}
			}
		case "http_request_duration_seconds":
			histogram = mergeHistograms(family.GetMetric())
		}
	}

	if total > 0 {
		UpdateAvailability((total - errors) / total)
		UpdateErrorRate(errors / total)
	}
	if histogram != nil && histogram.GetSampleCount() > 0 {
		UpdateLatencyP95(quantile(histogram, 0.95))
		UpdateLatencyP99(quantile(histogram, 0.99))
	}
}

// mergeHistograms sums the per-label histograms of one family into a
// single bucket set so quantiles reflect all endpoints together.
func mergeHistograms(metrics []*dto.Metric) *dto.Histogram {
	merged := &dto.Histogram{}
	buckets := map[float64]uint64{}
	var count uint64

	for _, m := range metrics {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			buckets[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if count == 0 {
		return nil
	}

	merged.SampleCount = &count
	for bound, cumulative := range buckets {
		bound, cumulative := bound, cumulative
		merged.Bucket = append(merged.Bucket, &dto.Bucket{
			UpperBound:      &bound,
			CumulativeCount: &cumulative,
		})
	}
	sortBuckets(merged.Bucket)
	return merged
}

func sortBuckets(buckets []*dto.Bucket) {
	for i := 1; i < len(buckets); i++ {
		for j := i; j > 0 && buckets[j].GetUpperBound() < buckets[j-1].GetUpperBound(); j-- {
			buckets[j], buckets[j-1] = buckets[j-1], buckets[j]
		}
	}
}

// quantile returns the upper bound of the first bucket containing the
// requested quantile. A bucketed histogram cannot interpolate more finely
// than its bounds, which is acceptable for SLO gauge purposes.
func quantile(h *dto.Histogram, q float64) float64 {
	target := q * float64(h.GetSampleCount())
	for _, b := range h.GetBucket() {
		if float64(b.GetCumulativeCount()) >= target {
			if math.IsInf(b.GetUpperBound(), +1) {
				break
			}
			return b.GetUpperBound()
		}
	}
	// Everything landed in the +Inf bucket; report the largest finite bound.
	var largest float64
	for _, b := range h.GetBucket() {
		if !math.IsInf(b.GetUpperBound(), +1) && b.GetUpperBound() > largest {
			largest = b.GetUpperBound()
		}
	}
	return largest
}
