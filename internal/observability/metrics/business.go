package metrics

import (
	"strconv"
	"time"
)

// RecordStoriesFetched records the number of candidates a source adapter
// returned for one project, before dedup/persistence.
func RecordStoriesFetched(source string, projectID int64, count int) {
	if count <= 0 {
		return
	}
	StoriesFetchedTotal.WithLabelValues(source, strconv.FormatInt(projectID, 10)).Add(float64(count))
}

// RecordStoriesQueued records the number of candidates persisted and
// handed to the task queue for one project.
func RecordStoriesQueued(source string, projectID int64, count int) {
	if count <= 0 {
		return
	}
	StoriesQueuedTotal.WithLabelValues(source, strconv.FormatInt(projectID, 10)).Add(float64(count))
}

// RecordStoryScored records the outcome of a classifier run for one story.
func RecordStoryScored(projectID int64, success bool) {
	result := "success"
	if !success {
		result = "model_error"
	}
	StoriesScoredTotal.WithLabelValues(strconv.FormatInt(projectID, 10), result).Inc()
}

// RecordStoryAboveThreshold records a story clearing its project's
// confidence threshold.
func RecordStoryAboveThreshold(projectID int64) {
	StoriesAboveThresholdTotal.WithLabelValues(strconv.FormatInt(projectID, 10)).Inc()
}

// RecordStoryPosted records the outcome of posting a story to a
// project's update_post_url. result should be one of "success",
// "transient_error", "permanent_error".
func RecordStoryPosted(projectID int64, result string) {
	StoriesPostedTotal.WithLabelValues(strconv.FormatInt(projectID, 10), result).Inc()
}

// RecordSourceFetch records the duration of one source adapter call.
func RecordSourceFetch(source string, duration time.Duration) {
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordSourceFetchError records an error raised by a source adapter.
func RecordSourceFetchError(source, errorType string) {
	SourceFetchErrors.WithLabelValues(source, errorType).Inc()
}

// RecordContentFetchSuccess records a successful content extraction,
// tracking both its duration and the size of the extracted text.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content extraction attempt.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchCacheHit records a content extraction served from the
// in-process LRU cache without hitting the network.
func RecordContentFetchCacheHit() {
	ContentFetchAttemptsTotal.WithLabelValues("cache_hit").Inc()
}

// UpdateQueueDepth sets the current task queue depth gauge.
func UpdateQueueDepth(depth int64) {
	QueueDepth.Set(float64(depth))
}

// RecordModelLoadFailure records a classifier artifact load failure for a
// given model id and reason (e.g. "download", "decode", "nan_coefficient").
func RecordModelLoadFailure(modelID int64, reason string) {
	ModelLoadFailuresTotal.WithLabelValues(strconv.FormatInt(modelID, 10), reason).Inc()
}

// RecordSchedulerRun records the wall-clock duration of one scheduler run.
func RecordSchedulerRun(source string, duration time.Duration) {
	SchedulerRunDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_stories", "insert_stories").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
