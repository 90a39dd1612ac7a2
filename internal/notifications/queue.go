package notifications

import "time"

// QueueStatus is where a queued notification is in its delivery lifecycle:
// pending -> processing -> sent, or back to pending for a retry, or failed.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueueStatuses lists every status in lifecycle order.
var QueueStatuses = []QueueStatus{
	QueueStatusPending,
	QueueStatusProcessing,
	QueueStatusSent,
	QueueStatusFailed,
}

// QueueItem is one notification bound for one channel.
type QueueItem struct {
	ID          string
	IncidentID  string
	Channel     string
	MessageType MessageType
	Payload     NotificationPayload
	Status      QueueStatus

	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string

	CreatedAt time.Time
	UpdatedAt time.Time
	SentAt    *time.Time
}

// QueueStats holds the number of queue items per status. Statuses with no
// items may be absent.
type QueueStats map[QueueStatus]int64
