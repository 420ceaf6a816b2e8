package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// The error taxonomy below classifies every failure mode the
// pipeline can hit so that each component knows, without inspecting a
// message string, whether an error is fatal at startup, recoverable
// locally, or grounds for dropping a single job.

// ConfigError indicates a missing env var or an unreachable config server
// with no usable disk snapshot. Fatal at startup.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error during %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransientSourceError wraps an HTTP 5xx/timeout from a source adapter.
// Recovered locally via retry; if retries are exhausted the Scheduler
// skips the project for this run rather than aborting it.
type TransientSourceError struct {
	Source Source
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("transient error from source %s: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// ExtractionError silently downgrades a candidate to EXTRACTION_FAILED;
// it never aborts a batch.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ModelError is non-retryable: it fails the worker job permanently. The
// job is logged but never re-queued.
type ModelError struct {
	ModelID int64
	Reason  string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %d error (%s): %v", e.ModelID, e.Reason, e.Err)
	}
	return fmt.Sprintf("model %d error: %s", e.ModelID, e.Reason)
}

func (e *ModelError) Unwrap() error { return e.Err }

// TransientPostError wraps a 5xx or connection error posting to
// project.update_post_url. Grounds for re-queueing the job with backoff.
type TransientPostError struct {
	StatusCode int
	Err        error
}

func (e *TransientPostError) Error() string {
	return fmt.Sprintf("transient post error (status %d): %v", e.StatusCode, e.Err)
}

func (e *TransientPostError) Unwrap() error { return e.Err }

// PermanentPostError wraps a 4xx response (other than 408/429) from the
// central server. The job is logged and dropped; the audit row remains
// not-posted.
type PermanentPostError struct {
	StatusCode int
	Body       string
}

func (e *PermanentPostError) Error() string {
	return fmt.Sprintf("permanent post error (status %d): %s", e.StatusCode, e.Body)
}

// AuditStoreError indicates the connection to the audit database was
// lost. A worker retries the whole job; the Scheduler aborts the run.
type AuditStoreError struct {
	Op  string
	Err error
}

func (e *AuditStoreError) Error() string {
	return fmt.Sprintf("audit store error during %s: %v", e.Op, e.Err)
}

func (e *AuditStoreError) Unwrap() error { return e.Err }

// IsRetryable classifies an error from the taxonomy above as safe to
// retry. Unknown error types are treated as non-retryable by default —
// callers that want network-level retry classification (timeouts, 5xx)
// should use internal/resilience/retry.IsRetryable instead, which this
// type-based classification complements rather than replaces.
func IsRetryable(err error) bool {
	var transientSource *TransientSourceError
	if errors.As(err, &transientSource) {
		return true
	}
	var transientPost *TransientPostError
	if errors.As(err, &transientPost) {
		return true
	}
	var auditErr *AuditStoreError
	if errors.As(err, &auditErr) {
		return true
	}
	return false
}
