// Package notifications delivers incident lifecycle messages to chat webhooks
// through a durable queue.
package notifications

import (
	"context"
	"time"
)

// Repository defines the interface for notification queue access.
type Repository interface {
	EnqueueNotifications(ctx context.Context, items []*QueueItem) error
	// FetchPendingNotifications claims due items, moving them to processing.
	FetchPendingNotifications(ctx context.Context, limit int) ([]*QueueItem, error)
	MarkAsSent(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, err error) error
	MarkForRetry(ctx context.Context, id string, err error, nextAttempt time.Time) error
	GetQueueStats(ctx context.Context) (QueueStats, error)
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}
