package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/google/uuid"
)

const defaultListLimit = 50

// Service implements the incident lifecycle.
type Service struct {
	repo      Repository
	publisher ChangePublisher
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a new incident service. publisher and notifier may be nil.
func NewService(repo Repository, publisher ChangePublisher, notifier Notifier) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateIncidentInput holds data for creating an incident.
type CreateIncidentInput struct {
	Title       string
	Description string
	Impact      domain.Impact
	Status      domain.IncidentStatus
	ServiceIDs  []string
}

// PostUpdateInput holds data for appending an update to an incident.
type PostUpdateInput struct {
	IncidentID string
	Text       string
	// Status defaults to the incident's current status when empty.
	Status domain.IncidentStatus
}

// Create validates the input and persists a new incident with its initial update.
func (s *Service) Create(ctx context.Context, input CreateIncidentInput, createdBy string) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	serviceIDs := normalizeIDs(input.ServiceIDs)
	if len(serviceIDs) == 0 {
		return nil, ErrServicesRequired
	}

	impact := input.Impact
	if impact == "" {
		impact = domain.ImpactMinor
	}
	if !impact.IsValid() {
		return nil, ErrInvalidImpact
	}

	status := input.Status
	if status == "" {
		status = domain.IncidentStatusInvestigating
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	now := s.now()
	description := strings.TrimSpace(input.Description)
	incident := &domain.Incident{
		Title:       title,
		Description: description,
		Impact:      impact,
		Status:      status,
		ServiceIDs:  serviceIDs,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Updates: []domain.IncidentUpdate{{
			Text:      domain.InitialUpdatePrefix + description,
			Status:    status,
			Timestamp: now,
		}},
	}
	if status.IsResolved() {
		incident.ResolvedAt = &now
	}

	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	s.publish(ctx, domain.ChangeCreated, incident.ID)
	if s.notifier != nil {
		if err := s.notifier.OnIncidentCreated(ctx, incident); err != nil {
			slog.Error("failed to notify incident created", "incident_id", incident.ID, "error", err)
		}
	}

	return incident, nil
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrIncidentNotFound
	}
	return s.repo.GetIncident(ctx, id)
}

// List retrieves incidents newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Incident, error) {
	if filter.State == "" {
		filter.State = StateAll
	}
	if !filter.State.IsValid() {
		return nil, fmt.Errorf("invalid state filter: %s", filter.State)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListIncidents(ctx, filter)
}

// PostUpdate appends a timeline entry and moves the incident to the given status.
// An update with blank text is ignored: it returns (nil, false, nil) and
// touches nothing.
func (s *Service) PostUpdate(ctx context.Context, input PostUpdateInput) (*domain.Incident, bool, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, false, nil
	}

	current, err := s.Get(ctx, input.IncidentID)
	if err != nil {
		return nil, false, err
	}

	status := input.Status
	if status == "" {
		status = current.Status
	}
	if !status.IsValid() {
		return nil, false, ErrInvalidStatus
	}

	update := &domain.IncidentUpdate{
		Text:      text,
		Status:    status,
		Timestamp: s.now(),
	}
	incident, err := s.repo.AppendUpdate(ctx, current.ID, update, false)
	if err != nil {
		return nil, false, fmt.Errorf("append update: %w", err)
	}

	s.publish(ctx, domain.ChangeUpdated, incident.ID)
	if s.notifier != nil {
		var nerr error
		if status.IsResolved() && !current.IsResolved() {
			nerr = s.notifier.OnIncidentResolved(ctx, incident)
		} else {
			nerr = s.notifier.OnIncidentUpdated(ctx, incident, update, current.Status)
		}
		if nerr != nil {
			slog.Error("failed to notify incident update", "incident_id", incident.ID, "error", nerr)
		}
	}

	return incident, true, nil
}

// Resolve marks an incident as resolved. Resolving an incident that is
// already resolved returns it unchanged with changed=false.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.Incident, bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current.IsResolved() {
		return current, false, nil
	}

	update := &domain.IncidentUpdate{
		Text:      domain.ResolvedUpdateText,
		Status:    domain.IncidentStatusResolved,
		Timestamp: s.now(),
	}
	incident, err := s.repo.AppendUpdate(ctx, id, update, true)
	if errors.Is(err, ErrAlreadyResolved) {
		// lost a race with another resolver
		current, err = s.repo.GetIncident(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve incident: %w", err)
	}

	s.publish(ctx, domain.ChangeUpdated, incident.ID)
	if s.notifier != nil {
		if err := s.notifier.OnIncidentResolved(ctx, incident); err != nil {
			slog.Error("failed to notify incident resolved", "incident_id", incident.ID, "error", err)
		}
	}

	return incident, true, nil
}

func (s *Service) publish(ctx context.Context, kind domain.ChangeKind, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewChange(domain.TopicIncidents, kind, id)); err != nil {
		slog.Error("failed to publish incident change", "incident_id", id, "kind", kind, "error", err)
	}
}

// normalizeIDs trims, drops blanks and removes duplicates while keeping order.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
