// Package slack provides Slack notification sending via Incoming Webhooks.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/statuspage/internal/notifications"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUsername  = "StatusPage"
	defaultRateLimit = 1

	// Block Kit limits.
	maxHeaderLen  = 150
	maxSectionLen = 3000
)

// Config holds Slack sender configuration. Webhook URLs come from the
// configured channels.
type Config struct {
	Username  string
	IconEmoji string
	RateLimit float64 // messages per second across all webhooks
	Timeout   time.Duration
}

// Sender implements Slack notification sender via Incoming Webhooks.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSender creates a new Slack sender.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelTypeSlack
}

// Send posts a notification to a Slack webhook.
// notification.To contains the webhook URL.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	webhookURL := notification.To
	if webhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg := s.buildMessage(notification)
	err := slack.PostWebhookCustomHTTPContext(ctx, webhookURL, s.httpClient, msg)
	if err != nil {
		return classifyError(err)
	}

	slog.Debug("slack message sent", "webhook", maskWebhookURL(webhookURL))
	return nil
}

func (s *Sender) buildMessage(notification notifications.Notification) *slack.WebhookMessage {
	var blocks []slack.Block
	if notification.Subject != "" {
		blocks = append(blocks, slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, truncate(notification.Subject, maxHeaderLen), true, false),
		))
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, truncate(notification.Body, maxSectionLen), false, false),
		nil,
		nil,
	))

	text := notification.Body
	if notification.Subject != "" {
		text = notification.Subject
	}

	return &slack.WebhookMessage{
		Username:  s.config.Username,
		IconEmoji: s.config.IconEmoji,
		Text:      text,
		Blocks:    &slack.Blocks{BlockSet: blocks},
	}
}

func classifyError(err error) error {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return &RetryableError{
			Code:       http.StatusTooManyRequests,
			Message:    "rate limited",
			RetryAfter: rateLimited.RetryAfter,
		}
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500:
			return &RetryableError{Code: statusErr.Code, Message: statusErr.Status}
		case statusErr.Code == http.StatusNotFound:
			return &PermanentError{Code: statusErr.Code, Message: "webhook not found"}
		case statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden:
			return &PermanentError{Code: statusErr.Code, Message: "invalid or revoked webhook"}
		default:
			return &PermanentError{Code: statusErr.Code, Message: statusErr.Status}
		}
	}

	return &RetryableError{Message: err.Error()}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// maskWebhookURL hides the secret part of the URL for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-6:]
	}
	return url
}

// PermanentError indicates an error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("slack error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("slack error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("slack error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("slack error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
