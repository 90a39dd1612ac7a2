// Package postgres stores the service registry in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/statuspage/internal/catalog"
	"github.com/bissquit/statuspage/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectServices = `SELECT id, name, status, created_at, updated_at FROM services`

	insertService = `
		INSERT INTO services (name, status)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	updateService = `
		UPDATE services
		SET name = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
)

// Repository implements catalog.Repository.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a repository on the given pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateService inserts service and fills in the generated id and timestamps.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	err := r.db.QueryRow(ctx, insertService, service.Name, service.Status).
		Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

// GetServiceByID returns catalog.ErrServiceNotFound for unknown ids.
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	rows, err := r.db.Query(ctx, selectServices+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	service, err := pgx.CollectExactlyOneRow(rows, scanService)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	return &service, nil
}

// ListServices returns every service ordered by name. The slice is never nil.
func (r *Repository) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, selectServices+` ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	services, err := pgx.CollectRows(rows, scanService)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if services == nil {
		services = []domain.Service{}
	}
	return services, nil
}

// UpdateService overwrites name and status and refreshes updated_at.
func (r *Repository) UpdateService(ctx context.Context, service *domain.Service) error {
	err := r.db.QueryRow(ctx, updateService, service.ID, service.Name, service.Status).
		Scan(&service.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrServiceNotFound
	}
	if err != nil {
		return fmt.Errorf("update service %s: %w", service.ID, err)
	}
	return nil
}

// DeleteService removes the row for good.
func (r *Repository) DeleteService(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrServiceNotFound
	}
	return nil
}

func scanService(row pgx.CollectableRow) (domain.Service, error) {
	var s domain.Service
	err := row.Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
