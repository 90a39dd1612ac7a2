// Package postgres provides PostgreSQL implementation of the notification queue.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/statuspage/internal/notifications"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// staleProcessingAfter is how long a claimed item may stay in processing
// before another worker reclaims it.
const staleProcessingAfter = 5 * time.Minute

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnqueueNotifications inserts queue items in one transaction.
func (r *Repository) EnqueueNotifications(ctx context.Context, items []*notifications.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO notification_queue (incident_id, channel, message_type, payload, status, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	batch := &pgx.Batch{}
	for _, item := range items {
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		batch.Queue(query,
			item.IncidentID,
			item.Channel,
			item.MessageType,
			payload,
			item.Status,
			item.MaxAttempts,
			item.NextAttemptAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, item := range items {
		if err := results.QueryRow().Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert queue item for %s: %w", item.Channel, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// FetchPendingNotifications claims up to limit due items. Concurrent workers
// never receive the same item.
func (r *Repository) FetchPendingNotifications(ctx context.Context, limit int) ([]*notifications.QueueItem, error) {
	query := `
		UPDATE notification_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE (status = 'pending' AND next_attempt_at <= NOW())
			   OR (status = 'processing' AND updated_at < NOW() - $2::interval)
			ORDER BY next_attempt_at, created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, incident_id, channel, message_type, payload, status, attempts, max_attempts,
		          next_attempt_at, COALESCE(last_error, ''), created_at, updated_at, sent_at
	`
	rows, err := r.db.Query(ctx, query, limit, staleProcessingAfter)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	var items []*notifications.QueueItem
	for rows.Next() {
		var (
			item    notifications.QueueItem
			payload []byte
		)
		if err := rows.Scan(
			&item.ID,
			&item.IncidentID,
			&item.Channel,
			&item.MessageType,
			&payload,
			&item.Status,
			&item.Attempts,
			&item.MaxAttempts,
			&item.NextAttemptAt,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload of %s: %w", item.ID, err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

// MarkAsSent marks an item as delivered.
func (r *Repository) MarkAsSent(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'sent', attempts = attempts + 1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark as sent", query, id)
}

// MarkAsFailed marks an item as permanently failed.
func (r *Repository) MarkAsFailed(ctx context.Context, id string, cause error) error {
	query := `
		UPDATE notification_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark as failed", query, id, errorText(cause))
}

// MarkForRetry returns an item to pending with a later attempt time.
func (r *Repository) MarkForRetry(ctx context.Context, id string, cause error, nextAttempt time.Time) error {
	query := `
		UPDATE notification_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, "mark for retry", query, id, errorText(cause), nextAttempt)
}

// GetQueueStats counts queue items by status.
func (r *Repository) GetQueueStats(ctx context.Context) (notifications.QueueStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}

	stats := notifications.QueueStats{}
	var (
		status string
		count  int64
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &count}, func() error {
		stats[notifications.QueueStatus(status)] = count
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}
	return stats, nil
}

// DeleteSentBefore removes delivered items sent before the given time.
func (r *Repository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM notification_queue WHERE status = 'sent' AND sent_at < $1`
	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete sent notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, notifications.ErrQueueItemNotFound)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
