package notify

import (
	"context"

	"story-processor/internal/domain/entity"
	"story-processor/internal/infra/notifier"
)

// EmailChannel implements the Channel interface for SMTP email
// notifications. It wraps EmailNotifier the same way DiscordChannel wraps
// DiscordNotifier, so the Service's per-channel circuit breaker and worker
// pool apply uniformly across channels.
type EmailChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewEmailChannel creates a new email channel. Per, SMTP_*/
// NOTIFY_EMAILS gating is all-or-nothing: config.Enabled must already
// reflect that every required field was present at startup.
func NewEmailChannel(config notifier.EmailConfig) *EmailChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewEmailNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &EmailChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns the channel identifier "email".
func (c *EmailChannel) Name() string {
	return "email"
}

// IsEnabled returns whether email notifications are enabled via configuration.
func (c *EmailChannel) IsEnabled() bool {
	return c.enabled
}

// Send sends a run-summary notification via email.
func (c *EmailChannel) Send(ctx context.Context, summary *entity.RunSummary) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if summary == nil {
		return ErrInvalidSummary
	}
	return c.notifier.NotifyRun(ctx, summary)
}
