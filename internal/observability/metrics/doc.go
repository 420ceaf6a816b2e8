// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Business metrics (stories fetched/queued/scored/posted, queue depth)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "story-processor/internal/observability/metrics"
//
//	func processProject(source string, projectID int64) {
//	    start := time.Now()
//	    // ... fetch candidates ...
//	    count := 10
//
//	    metrics.RecordStoriesFetched(source, projectID, count)
//	    metrics.RecordOperationDuration("fetch_candidates", time.Since(start))
//	}
package metrics
