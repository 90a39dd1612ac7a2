// Package live delivers change events to subscribers: an in-process hub fed
// by PostgreSQL LISTEN/NOTIFY and exposed over WebSocket.
package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/metrics"
	"github.com/google/uuid"
)

// Subscription errors.
var (
	ErrSlowConsumer = errors.New("subscriber fell behind")
	ErrClosed       = errors.New("subscription closed")
	ErrInvalidTopic = errors.New("invalid topic")
)

// Topic is what a subscriber watches: "services", "incidents" or
// "incidents/{id}".
type Topic string

// Well-known topics.
const (
	TopicServices  = Topic(domain.TopicServices)
	TopicIncidents = Topic(domain.TopicIncidents)
)

// IncidentTopic returns the topic for a single incident.
func IncidentTopic(id string) Topic {
	return Topic(string(domain.TopicIncidents) + "/" + id)
}

// ParseTopic validates a topic string.
func ParseTopic(s string) (Topic, error) {
	switch Topic(s) {
	case TopicServices, TopicIncidents:
		return Topic(s), nil
	}
	if id, ok := strings.CutPrefix(s, string(domain.TopicIncidents)+"/"); ok {
		if _, err := uuid.Parse(id); err == nil {
			return IncidentTopic(id), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTopic, s)
}

// IncidentID returns the incident ID of a single-incident topic.
func (t Topic) IncidentID() (string, bool) {
	return strings.CutPrefix(string(t), string(domain.TopicIncidents)+"/")
}

// metricLabel keeps per-incident topics out of metric labels.
func (t Topic) metricLabel() string {
	if _, ok := t.IncidentID(); ok {
		return "incident"
	}
	return string(t)
}

// topicsFor lists the topics a change is delivered to.
func topicsFor(change domain.Change) []Topic {
	switch change.Topic {
	case domain.TopicServices:
		return []Topic{TopicServices}
	case domain.TopicIncidents:
		return []Topic{TopicIncidents, IncidentTopic(change.ID)}
	}
	return nil
}

// MessageKind tells a subscriber why it is being woken up.
type MessageKind string

// Message kinds.
const (
	MessageSnapshot MessageKind = "snapshot"
	MessageChange   MessageKind = "change"
)

// Message is delivered on a subscription channel. The first message of every
// subscription is a snapshot marker; every later one carries a change.
type Message struct {
	Kind   MessageKind
	Change *domain.Change
}

// Subscription is a registered listener. It must be released with Close.
type Subscription struct {
	topic Topic
	ch    chan Message
	hub   *Hub

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Message { return s.ch }

// Err reports why the channel was closed: ErrSlowConsumer or ErrClosed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s, ErrClosed)
}

func (s *Subscription) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

// Hub fans change events out to subscribers.
type Hub struct {
	mu         sync.Mutex
	subs       map[Topic]map[*Subscription]struct{}
	bufferSize int
	closed     bool
}

// NewHub creates a hub whose subscribers buffer up to bufferSize messages.
func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub{
		subs:       make(map[Topic]map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a subscriber for the topic. The returned channel
// immediately holds a snapshot marker.
func (h *Hub) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Message, h.bufferSize+1),
		hub:   h,
	}
	sub.ch <- Message{Kind: MessageSnapshot}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.terminate(ErrClosed)
		return sub
	}
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	metrics.LiveSubscribers.WithLabelValues(topic.metricLabel()).Inc()
	return sub
}

// Broadcast delivers a change to every subscriber of the matching topics.
// Subscribers whose buffer is full are dropped with ErrSlowConsumer.
func (h *Hub) Broadcast(change domain.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.LiveChangesPublished.WithLabelValues(string(change.Topic)).Inc()

	for _, topic := range topicsFor(change) {
		h.deliverLocked(topic, change)
	}
}

// Resync sends an update to every topic that has subscribers, per-incident
// topics included, so each of them reloads its snapshot.
func (h *Hub) Resync() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.subs {
		change := domain.NewChange(domain.ChangeTopic(topic), domain.ChangeUpdated, "")
		if id, ok := topic.IncidentID(); ok {
			change = domain.NewChange(domain.TopicIncidents, domain.ChangeUpdated, id)
		}
		h.deliverLocked(topic, change)
	}
}

func (h *Hub) deliverLocked(topic Topic, change domain.Change) {
	for sub := range h.subs[topic] {
		c := change
		select {
		case sub.ch <- Message{Kind: MessageChange, Change: &c}:
		default:
			h.removeLocked(sub, ErrSlowConsumer)
			metrics.LiveDroppedSubscribers.Inc()
		}
	}
}

// Publish implements the change publisher interface for single-process
// deployments without a database listener.
func (h *Hub) Publish(_ context.Context, change domain.Change) error {
	h.Broadcast(change)
	return nil
}

// SubscriberCount returns the number of subscribers of a topic.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Close terminates all subscriptions and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			h.removeLocked(sub, ErrClosed)
		}
	}
}

func (h *Hub) remove(sub *Subscription, reason error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub, reason)
}

func (h *Hub) removeLocked(sub *Subscription, reason error) {
	subs, ok := h.subs[sub.topic]
	if ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			metrics.LiveSubscribers.WithLabelValues(sub.topic.metricLabel()).Dec()
			if len(subs) == 0 {
				delete(h.subs, sub.topic)
			}
		}
	}
	sub.terminate(reason)
}
