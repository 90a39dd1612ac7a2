package incidents

import (
	"context"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
)

// Repository defines the interface for incident storage.
type Repository interface {
	// CreateIncident persists the incident together with its updates.
	CreateIncident(ctx context.Context, incident *domain.Incident) error
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, filter ListFilter) ([]domain.Incident, error)
	// AppendUpdate adds an update, sets status and updated_at from it, and stamps
	// resolved_at on the first transition to resolved. With requireOpen set it
	// returns ErrAlreadyResolved instead of touching a resolved incident.
	AppendUpdate(ctx context.Context, incidentID string, update *domain.IncidentUpdate, requireOpen bool) (*domain.Incident, error)
}

// State selects incidents by resolution.
type State string

// Incident list states.
const (
	StateAll      State = "all"
	StateActive   State = "active"
	StateResolved State = "resolved"
)

// IsValid checks if the state filter is valid.
func (s State) IsValid() bool {
	switch s {
	case StateAll, StateActive, StateResolved:
		return true
	}
	return false
}

// ListFilter holds filter options for listing incidents.
type ListFilter struct {
	State         State
	ServiceID     string
	ResolvedSince *time.Time
	Limit         int
	Offset        int
}

// ChangePublisher announces committed writes to subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, change domain.Change) error
}

// Notifier is told about lifecycle transitions after they are committed.
type Notifier interface {
	OnIncidentCreated(ctx context.Context, incident *domain.Incident) error
	OnIncidentUpdated(ctx context.Context, incident *domain.Incident, update *domain.IncidentUpdate, previous domain.IncidentStatus) error
	OnIncidentResolved(ctx context.Context, incident *domain.Incident) error
}
