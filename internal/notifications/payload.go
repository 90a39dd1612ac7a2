package notifications

import (
	"time"

	"github.com/bissquit/statuspage/internal/domain"
)

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeCreated  MessageType = "created"
	MessageTypeUpdated  MessageType = "updated"
	MessageTypeResolved MessageType = "resolved"
)

// NotificationPayload contains data for rendering a notification.
type NotificationPayload struct {
	MessageType MessageType   `json:"message_type"`
	Incident    IncidentData  `json:"incident"`
	Update      *UpdateData   `json:"update,omitempty"`
	StatusFrom  string        `json:"status_from,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	IncidentURL string        `json:"incident_url,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// IncidentData contains incident information for notification.
type IncidentData struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Impact      string        `json:"impact"`
	Status      string        `json:"status"`
	Services    []ServiceInfo `json:"services"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// ServiceInfo contains service data for notification context.
type ServiceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdateData is the incident update that triggered the notification.
type UpdateData struct {
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func newUpdateData(u *domain.IncidentUpdate) *UpdateData {
	if u == nil {
		return nil
	}
	return &UpdateData{Text: u.Text, Status: string(u.Status), Timestamp: u.Timestamp}
}
