package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
)

// ServiceNameResolver resolves service IDs to names.
type ServiceNameResolver interface {
	GetServiceName(ctx context.Context, serviceID string) (string, error)
}

// NotifierConfig configures the notifier.
type NotifierConfig struct {
	BaseURL     string
	MaxAttempts int
}

// Notifier enqueues one notification per configured channel for every
// incident lifecycle event.
type Notifier struct {
	repo         Repository
	channels     *Channels
	nameResolver ServiceNameResolver
	config       NotifierConfig
	now          func() time.Time
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo Repository, channels *Channels, nameResolver ServiceNameResolver, config NotifierConfig) *Notifier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 3
	}
	return &Notifier{
		repo:         repo,
		channels:     channels,
		nameResolver: nameResolver,
		config:       config,
		now:          time.Now,
	}
}

// OnIncidentCreated enqueues notifications for a newly created incident.
func (n *Notifier) OnIncidentCreated(ctx context.Context, incident *domain.Incident) error {
	return n.enqueue(ctx, incident, NotificationPayload{
		MessageType: MessageTypeCreated,
		Update:      newUpdateData(incident.LatestUpdate()),
	})
}

// OnIncidentUpdated enqueues notifications for a posted update.
func (n *Notifier) OnIncidentUpdated(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate, previous domain.IncidentStatus) error {
	payload := NotificationPayload{
		MessageType: MessageTypeUpdated,
		Update:      newUpdateData(update),
	}
	if previous != incident.Status {
		payload.StatusFrom = string(previous)
	}
	return n.enqueue(ctx, incident, payload)
}

// OnIncidentResolved enqueues notifications for a resolution.
func (n *Notifier) OnIncidentResolved(ctx context.Context, incident *domain.Incident) error {
	payload := NotificationPayload{
		MessageType: MessageTypeResolved,
		Update:      newUpdateData(incident.LatestUpdate()),
	}
	if incident.ResolvedAt != nil {
		payload.Duration = incident.ResolvedAt.Sub(incident.CreatedAt)
	}
	return n.enqueue(ctx, incident, payload)
}

func (n *Notifier) enqueue(ctx context.Context, incident *domain.Incident, payload NotificationPayload) error {
	if n.channels.Len() == 0 {
		return nil
	}

	now := n.now()
	payload.Incident = n.buildIncidentData(ctx, incident)
	payload.IncidentURL = n.buildIncidentURL(incident.ID)
	payload.GeneratedAt = now

	items := make([]*QueueItem, 0, n.channels.Len())
	for _, name := range n.channels.Names() {
		items = append(items, &QueueItem{
			IncidentID:    incident.ID,
			Channel:       name,
			MessageType:   payload.MessageType,
			Payload:       payload,
			Status:        QueueStatusPending,
			MaxAttempts:   n.config.MaxAttempts,
			NextAttemptAt: now,
		})
	}

	if err := n.repo.EnqueueNotifications(ctx, items); err != nil {
		return fmt.Errorf("enqueue notifications: %w", err)
	}

	slog.Info("incident notifications queued",
		"incident_id", incident.ID,
		"message_type", payload.MessageType,
		"channels", len(items),
	)
	return nil
}

func (n *Notifier) buildIncidentData(ctx context.Context, incident *domain.Incident) IncidentData {
	services := make([]ServiceInfo, 0, len(incident.ServiceIDs))
	for _, id := range incident.ServiceIDs {
		name := id
		if n.nameResolver != nil {
			if resolved, err := n.nameResolver.GetServiceName(ctx, id); err == nil {
				name = resolved
			} else {
				slog.Debug("service name not resolved", "service_id", id, "error", err)
			}
		}
		services = append(services, ServiceInfo{ID: id, Name: name})
	}

	return IncidentData{
		ID:          incident.ID,
		Title:       incident.Title,
		Description: incident.Description,
		Impact:      string(incident.Impact),
		Status:      string(incident.Status),
		Services:    services,
		CreatedAt:   incident.CreatedAt,
		ResolvedAt:  incident.ResolvedAt,
	}
}

func (n *Notifier) buildIncidentURL(id string) string {
	if n.config.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(n.config.BaseURL, "/") + "/dashboard/incidents/" + id
}
