package domain

import "time"

// ChangeTopic names a collection that subscribers can watch.
type ChangeTopic string

// Change topics.
const (
	TopicServices  ChangeTopic = "services"
	TopicIncidents ChangeTopic = "incidents"
)

// ChangeKind describes what happened to a record.
type ChangeKind string

// Change kinds.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is emitted after every successful write to services or incidents.
type Change struct {
	Topic      ChangeTopic `json:"topic"`
	Kind       ChangeKind  `json:"kind"`
	ID         string      `json:"id"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewChange creates a change stamped with the current time.
func NewChange(topic ChangeTopic, kind ChangeKind, id string) Change {
	return Change{
		Topic:      topic,
		Kind:       kind,
		ID:         id,
		OccurredAt: time.Now().UTC(),
	}
}
