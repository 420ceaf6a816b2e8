// Package notifier provides abstraction for sending run-summary notifications.
// It defines the Notifier interface which allows different notification mechanisms
// (Discord, Slack, email, etc.) to be used interchangeably through dependency injection.
//
// The package includes implementations for Discord and Slack webhooks, SMTP email,
// and a no-op notifier for when notifications are disabled.
package notifier

import (
	"context"

	"story-processor/internal/domain/entity"
)

// Notifier is an interface for sending scheduler run-summary notifications.
// Implementations should handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyRun sends a notification describing the outcome of one
	// scheduler run.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - summary: The run summary to notify about (must not be nil)
	//
	// Returns:
	//   - error: Non-nil if the notification failed after all retry attempts
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the request ID for debugging
	//   - Respect context cancellation
	NotifyRun(ctx context.Context, summary *entity.RunSummary) error
}
