// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/incidents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is an interface for database operations that both *pgxpool.Pool and pgx.Tx implement.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `
	id, title, description, impact, status, service_ids,
	COALESCE(created_by::text, ''), created_at, updated_at, resolved_at
`

// CreateIncident inserts the incident and its initial updates in one transaction.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	query := `
		INSERT INTO incidents (
			title, description, impact, status, service_ids,
			created_by, created_at, updated_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8, $9)
		RETURNING id
	`
	err = tx.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Impact,
		incident.Status,
		incident.ServiceIDs,
		incident.CreatedBy,
		incident.CreatedAt,
		incident.UpdatedAt,
		incident.ResolvedAt,
	).Scan(&incident.ID)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}

	for i := range incident.Updates {
		if err := insertUpdate(ctx, tx, incident.ID, &incident.Updates[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetIncident retrieves an incident with its full timeline.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return getIncident(ctx, r.db, id)
}

// ListIncidents retrieves incidents ordered by creation time, newest first.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.ListFilter) ([]domain.Incident, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.State {
	case incidents.StateActive:
		where = append(where, "status <> 'resolved'")
	case incidents.StateResolved:
		where = append(where, "status = 'resolved'")
	}
	if filter.ServiceID != "" {
		where = append(where, arg(filter.ServiceID)+" = ANY(service_ids)")
	}
	if filter.ResolvedSince != nil {
		where = append(where, "resolved_at >= "+arg(*filter.ResolvedSince))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Incident, 0)
	index := make(map[string]int)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		index[incident.ID] = len(result)
		result = append(result, *incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	if len(result) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(result))
	for _, inc := range result {
		ids = append(ids, inc.ID)
	}
	updates, err := listUpdates(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for incidentID, list := range updates {
		result[index[incidentID]].Updates = list
	}
	return result, nil
}

// AppendUpdate inserts an update and applies its status to the incident.
func (r *Repository) AppendUpdate(ctx context.Context, incidentID string, update *domain.IncidentUpdate, requireOpen bool) (*domain.Incident, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	var status domain.IncidentStatus
	err = tx.QueryRow(ctx, `SELECT status FROM incidents WHERE id = $1 FOR UPDATE`, incidentID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("lock incident: %w", err)
	}
	if requireOpen && status.IsResolved() {
		return nil, incidents.ErrAlreadyResolved
	}

	if err := insertUpdate(ctx, tx, incidentID, update); err != nil {
		return nil, err
	}

	query := `
		UPDATE incidents
		SET status = $2,
		    updated_at = $3,
		    resolved_at = CASE WHEN $2 = 'resolved' THEN COALESCE(resolved_at, $3) ELSE resolved_at END
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, incidentID, update.Status, update.Timestamp); err != nil {
		return nil, fmt.Errorf("update incident: %w", err)
	}

	incident, err := getIncident(ctx, tx, incidentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return incident, nil
}

func getIncident(ctx context.Context, q querier, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	incident, err := scanIncident(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	updates, err := listUpdates(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	incident.Updates = updates[id]
	if incident.Updates == nil {
		incident.Updates = []domain.IncidentUpdate{}
	}
	return incident, nil
}

func insertUpdate(ctx context.Context, q querier, incidentID string, update *domain.IncidentUpdate) error {
	query := `
		INSERT INTO incident_updates (incident_id, text, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := q.QueryRow(ctx, query, incidentID, update.Text, update.Status, update.Timestamp).Scan(&update.ID)
	if err != nil {
		return fmt.Errorf("insert incident update: %w", err)
	}
	return nil
}

// listUpdates returns timelines keyed by incident ID, oldest entry first.
func listUpdates(ctx context.Context, q querier, incidentIDs []string) (map[string][]domain.IncidentUpdate, error) {
	query := `
		SELECT incident_id, id, text, status, created_at
		FROM incident_updates
		WHERE incident_id = ANY($1::uuid[])
		ORDER BY created_at, seq
	`
	rows, err := q.Query(ctx, query, incidentIDs)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.IncidentUpdate, len(incidentIDs))
	for rows.Next() {
		var (
			incidentID string
			u          domain.IncidentUpdate
		)
		if err := rows.Scan(&incidentID, &u.ID, &u.Text, &u.Status, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		result[incidentID] = append(result[incidentID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident updates: %w", err)
	}
	return result, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Impact,
		&incident.Status,
		&incident.ServiceIDs,
		&incident.CreatedBy,
		&incident.CreatedAt,
		&incident.UpdatedAt,
		&incident.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if incident.ServiceIDs == nil {
		incident.ServiceIDs = []string{}
	}
	return &incident, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
