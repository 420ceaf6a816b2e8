package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"story-processor/internal/domain/entity"
)

// EmailConfig contains configuration for SMTP email notifications. Per
// spec, email gating is all-or-nothing: if any required field is empty the
// channel must be constructed with Enabled=false rather than half-configured.
type EmailConfig struct {
	Enabled bool

	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       []string

	Timeout time.Duration
}

// EmailNotifier sends scheduler run-summary notifications as plain-text
// email via SMTP. This is the one channel with no third-party client in the
// retrieval pack (see DESIGN.md); net/smtp is the idiomatic ambient choice
// in its absence.
type EmailNotifier struct {
	config EmailConfig
	auth   smtp.Auth
}

// NewEmailNotifier creates a new EmailNotifier with the specified configuration.
func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &EmailNotifier{config: config, auth: auth}
}

// buildMessage renders a run summary as an RFC 5322 email message with
// a subject line, minimal headers, and a plain-text body.
func (e *EmailNotifier) buildMessage(summary *entity.RunSummary) []byte {
	subject := fmt.Sprintf("[story-processor] ingestion run complete: %s", summary.Source)
	if summary.HasFailures() {
		subject = fmt.Sprintf("[story-processor] ingestion run WITH FAILURES: %s", summary.Source)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", describeRun(summary))
	fmt.Fprintf(&body, "Source:    %s\n", summary.Source)
	fmt.Fprintf(&body, "Started:   %s\n", summary.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&body, "Ended:     %s\n\n", summary.EndedAt.Format(time.RFC3339))

	for _, p := range summary.Projects {
		fmt.Fprintf(&body, "- %s: fetched=%d queued=%d above_threshold=%d posted=%d failed=%d",
			p.ProjectTitle, p.Fetched, p.Queued, p.AboveThreshold, p.Posted, p.Failed)
		if p.NearCap {
			body.WriteString(" (near per-run cap)")
		}
		if len(p.Errors) > 0 {
			fmt.Fprintf(&body, "\n  errors: %s", strings.Join(p.Errors, "; "))
		}
		body.WriteString("\n")
	}

	if summary.FatalError != "" {
		fmt.Fprintf(&body, "\nFATAL: %s\n", summary.FatalError)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.config.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())

	return []byte(msg.String())
}

// NotifyRun sends an email summarizing one scheduler run. Implements the
// Notifier interface. net/smtp has no context support, so cancellation is
// only honored before dialing begins; the send itself runs to completion or
// to its underlying TCP timeout.
func (e *EmailNotifier) NotifyRun(ctx context.Context, summary *entity.RunSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.config.To) == 0 {
		return fmt.Errorf("email notifier: no recipients configured")
	}

	addr := fmt.Sprintf("%s:%s", e.config.Host, e.config.Port)
	msg := e.buildMessage(summary)

	if err := smtp.SendMail(addr, e.auth, e.config.From, e.config.To, msg); err != nil {
		return &ServerError{Message: fmt.Sprintf("smtp send failed: %s", err)}
	}
	return nil
}
