package notifier

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// LoadDiscordConfigFromEnv loads Discord webhook configuration, validating
// the webhook URL's scheme, host and path before enabling the channel. Any
// validation failure disables Discord rather than failing startup: the
// Notifier is best-effort, never gating the pipeline.
//
// Environment variables:
//   - DISCORD_ENABLED: Boolean flag to enable Discord notifications (default: false)
//   - DISCORD_WEBHOOK_URL: Discord webhook URL (required if enabled)
func LoadDiscordConfigFromEnv(logger *slog.Logger) DiscordConfig {
	enabled := os.Getenv("DISCORD_ENABLED") == "true"
	webhookURL := os.Getenv("DISCORD_WEBHOOK_URL")

	if !enabled {
		return DiscordConfig{Enabled: false}
	}

	if webhookURL == "" {
		logger.Warn("Discord webhook URL is empty, disabling notifications")
		return DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Discord webhook URL format, disabling notifications", slog.Any("error", err))
		return DiscordConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Discord webhook URL must use HTTPS, disabling notifications")
		return DiscordConfig{Enabled: false}
	}

	if u.Host != "discord.com" {
		logger.Warn("Invalid Discord webhook host, disabling notifications", slog.String("host", u.Host))
		return DiscordConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("Invalid Discord webhook path, disabling notifications", slog.String("path", u.Path))
		return DiscordConfig{Enabled: false}
	}

	return DiscordConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// LoadSlackConfigFromEnv loads Slack webhook configuration, with the same
// fail-disabled validation strategy as LoadDiscordConfigFromEnv.
//
// Environment variables:
//   - SLACK_ENABLED: Boolean flag to enable Slack notifications (default: false)
//   - SLACK_WEBHOOK_URL: Slack webhook URL (required if enabled)
func LoadSlackConfigFromEnv(logger *slog.Logger) SlackConfig {
	enabled := os.Getenv("SLACK_ENABLED") == "true"
	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")

	if !enabled {
		return SlackConfig{Enabled: false}
	}

	if webhookURL == "" {
		logger.Warn("Slack webhook URL is empty, disabling notifications")
		return SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Slack webhook URL format, disabling notifications", slog.Any("error", err))
		return SlackConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Slack webhook URL must use HTTPS, disabling notifications")
		return SlackConfig{Enabled: false}
	}

	if u.Host != "hooks.slack.com" {
		logger.Warn("Invalid Slack webhook host, disabling notifications", slog.String("host", u.Host))
		return SlackConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("Invalid Slack webhook path, disabling notifications", slog.String("path", u.Path))
		return SlackConfig{Enabled: false}
	}

	return SlackConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    30 * time.Second,
	}
}

// LoadEmailConfigFromEnv loads SMTP notification configuration.
// SMTP_*/NOTIFY_EMAILS are all-or-nothing: any missing required field
// disables the channel rather than half-configuring it.
//
// Environment variables:
//   - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM
//   - NOTIFY_EMAILS: comma-separated recipient list
func LoadEmailConfigFromEnv(logger *slog.Logger) EmailConfig {
	host := os.Getenv("SMTP_HOST")
	recipients := os.Getenv("NOTIFY_EMAILS")

	if host == "" || recipients == "" {
		return EmailConfig{Enabled: false}
	}

	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		logger.Warn("SMTP_FROM is empty, disabling email notifications")
		return EmailConfig{Enabled: false}
	}

	var to []string
	for _, addr := range strings.Split(recipients, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		logger.Warn("NOTIFY_EMAILS has no valid recipients, disabling email notifications")
		return EmailConfig{Enabled: false}
	}

	return EmailConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     from,
		To:       to,
		Timeout:  30 * time.Second,
	}
}
