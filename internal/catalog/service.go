package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/google/uuid"
)

// Service implements the service registry.
type Service struct {
	repo      Repository
	publisher ChangePublisher
}

// NewService creates a new catalog service. publisher may be nil.
func NewService(repo Repository, publisher ChangePublisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
	}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name   string
	Status domain.ServiceStatus
}

// UpdateServiceInput holds a partial update. Nil fields are left unchanged.
type UpdateServiceInput struct {
	Name   *string
	Status *domain.ServiceStatus
}

// CreateService validates and persists a new service.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (*domain.Service, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	status := input.Status
	if status == "" {
		status = domain.ServiceStatusOperational
	}
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	service := &domain.Service{
		Name:   name,
		Status: status,
	}
	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	s.publish(ctx, domain.ChangeCreated, service.ID)
	return service, nil
}

// GetService returns a service by ID.
func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrServiceNotFound
	}
	return s.repo.GetServiceByID(ctx, id)
}

// ListServices returns all services ordered by name.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.repo.ListServices(ctx)
}

// UpdateService applies a partial update to a service.
func (s *Service) UpdateService(ctx context.Context, id string, input UpdateServiceInput) (*domain.Service, error) {
	if input.Name == nil && input.Status == nil {
		return nil, ErrNoChanges
	}

	service, err := s.GetService(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		service.Name = name
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		service.Status = *input.Status
	}

	if err := s.repo.UpdateService(ctx, service); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}

	s.publish(ctx, domain.ChangeUpdated, service.ID)
	return service, nil
}

// DeleteService permanently removes a service.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrServiceNotFound
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, domain.ChangeDeleted, id)
	return nil
}

// GetServiceName resolves a service ID to its name.
func (s *Service) GetServiceName(ctx context.Context, id string) (string, error) {
	service, err := s.GetService(ctx, id)
	if err != nil {
		return "", err
	}
	return service.Name, nil
}

// AggregateStatus returns the overall status across all services.
func (s *Service) AggregateStatus(ctx context.Context) (domain.ServiceStatus, error) {
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return "", fmt.Errorf("list services: %w", err)
	}
	return domain.AggregateStatus(services), nil
}

func (s *Service) publish(ctx context.Context, kind domain.ChangeKind, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewChange(domain.TopicServices, kind, id)); err != nil {
		slog.Error("failed to publish service change", "service_id", id, "kind", kind, "error", err)
	}
}
