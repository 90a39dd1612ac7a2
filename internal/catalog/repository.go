package catalog

import (
	"context"

	"github.com/bissquit/statuspage/internal/domain"
)

// Repository persists services. Lookups of unknown ids return
// ErrServiceNotFound.
type Repository interface {
	CreateService(ctx context.Context, service *domain.Service) error
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)
	UpdateService(ctx context.Context, service *domain.Service) error
	DeleteService(ctx context.Context, id string) error
}

// ChangePublisher is told about every committed write so that subscribers
// can refresh.
type ChangePublisher interface {
	Publish(ctx context.Context, change domain.Change) error
}
