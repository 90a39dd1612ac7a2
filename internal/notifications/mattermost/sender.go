// Package mattermost delivers notifications through Mattermost incoming
// webhooks.
package mattermost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bissquit/statuspage/internal/notifications"
	"github.com/goccy/go-json"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "StatusPage"
	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// Config holds sender settings. Webhook URLs come from the channels.
type Config struct {
	Username string
	IconURL  string
	Timeout  time.Duration
}

// Sender posts messages to Mattermost.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a sender, filling in defaults for zero fields.
func NewSender(config Config) *Sender {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Type returns the channel type.
func (s *Sender) Type() notifications.ChannelType {
	return notifications.ChannelTypeMattermost
}

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// Send posts the notification to the webhook in notification.To. The subject
// becomes a heading above the body.
func (s *Sender) Send(ctx context.Context, notification notifications.Notification) error {
	if notification.To == "" {
		return &WebhookError{Message: "webhook URL is empty"}
	}

	text := notification.Body
	if notification.Subject != "" {
		text = "### " + notification.Subject + "\n\n" + notification.Body
	}
	body, err := json.Marshal(webhookPayload{
		Text:     text,
		Username: s.config.Username,
		IconURL:  s.config.IconURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notification.To, bytes.NewReader(body))
	if err != nil {
		return &WebhookError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &WebhookError{Message: fmt.Sprintf("send request: %v", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		slog.Debug("mattermost message sent", "webhook_host", webhookHost(notification.To))
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return newWebhookError(resp, string(snippet))
}

// newWebhookError classifies a non-200 reply. Rate limiting and server errors
// are worth retrying; anything else means the webhook or message is wrong.
func newWebhookError(resp *http.Response, body string) *WebhookError {
	e := &WebhookError{Code: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Message = "rate limited"
		e.Retryable = true
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= http.StatusInternalServerError:
		e.Message = "server error: " + body
		e.Retryable = true
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.Message = "invalid or expired webhook"
	case resp.StatusCode == http.StatusNotFound:
		e.Message = "webhook not found"
	case resp.StatusCode == http.StatusBadRequest:
		e.Message = "bad request: " + body
	default:
		e.Message = "unexpected status: " + body
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// webhookHost keeps the secret path of a webhook URL out of logs.
func webhookHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}

// WebhookError is a failed delivery. The worker reads Retryable through
// IsRetryable.
type WebhookError struct {
	Code       int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *WebhookError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return "mattermost error: " + e.Message
}

// IsRetryable reports whether another attempt may succeed.
func (e *WebhookError) IsRetryable() bool { return e.Retryable }
