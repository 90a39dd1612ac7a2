// Package statuspage assembles the public status view: overall status,
// services and incident lists.
package statuspage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/incidents"
	"github.com/bissquit/statuspage/internal/live"
	"github.com/bissquit/statuspage/internal/pkg/metrics"
	"github.com/jellydator/ttlcache/v3"
)

const summaryKey = "summary"

// ServiceLister lists registered services.
type ServiceLister interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
}

// IncidentReader reads incidents.
type IncidentReader interface {
	Get(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter incidents.ListFilter) ([]domain.Incident, error)
}

// Config configures the status view.
type Config struct {
	CacheTTL     time.Duration
	RecentWindow time.Duration
	RecentLimit  int
	// ActiveLimit caps the ongoing incidents shown; the oldest are dropped.
	ActiveLimit int
}

const (
	defaultActiveLimit = 100
	defaultRecentLimit = 20
)

// ServicesView is the state of the service registry.
type ServicesView struct {
	OverallStatus domain.ServiceStatus `json:"overall_status"`
	OverallLabel  string               `json:"overall_label"`
	Services      []domain.Service     `json:"services"`
}

// IncidentsView splits incidents into ongoing and recently resolved.
type IncidentsView struct {
	ActiveIncidents []domain.Incident `json:"active_incidents"`
	RecentIncidents []domain.Incident `json:"recent_incidents"`
}

// Summary is the full public status view.
type Summary struct {
	ServicesView
	IncidentsView
	GeneratedAt time.Time `json:"generated_at"`
}

// Service builds and caches the public status view.
type Service struct {
	services  ServiceLister
	incidents IncidentReader
	config    Config
	cache     *ttlcache.Cache[string, *Summary]
	// generation is bumped by Invalidate. A rebuild that started under an
	// older generation must not be cached.
	generation atomic.Uint64
}

// NewService creates a new status view service.
func NewService(services ServiceLister, incidentReader IncidentReader, config Config) *Service {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Second
	}
	if config.RecentWindow <= 0 {
		config.RecentWindow = 90 * 24 * time.Hour
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = defaultRecentLimit
	}
	if config.ActiveLimit <= 0 {
		config.ActiveLimit = defaultActiveLimit
	}
	return &Service{
		services:  services,
		incidents: incidentReader,
		config:    config,
		cache:     ttlcache.New(ttlcache.WithTTL[string, *Summary](config.CacheTTL)),
	}
}

// Start runs the cache janitor until Stop is called.
func (s *Service) Start() {
	s.cache.Start()
}

// Stop stops the cache janitor.
func (s *Service) Stop() {
	s.cache.Stop()
}

// Summary returns the cached status view, rebuilding it on a miss.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if item := s.cache.Get(summaryKey); item != nil {
		metrics.StatusCacheRequests.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	metrics.StatusCacheRequests.WithLabelValues("miss").Inc()

	gen := s.generation.Load()
	servicesView, err := s.Services(ctx)
	if err != nil {
		return nil, err
	}
	incidentsView, err := s.Incidents(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		ServicesView:  *servicesView,
		IncidentsView: *incidentsView,
		GeneratedAt:   time.Now().UTC(),
	}
	if s.generation.Load() == gen {
		s.cache.Set(summaryKey, summary, ttlcache.DefaultTTL)
	}
	return summary, nil
}

// Services returns the service list with its aggregate status.
func (s *Service) Services(ctx context.Context) (*ServicesView, error) {
	services, err := s.services.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	overall := domain.AggregateStatus(services)
	return &ServicesView{
		OverallStatus: overall,
		OverallLabel:  overall.Label(),
		Services:      services,
	}, nil
}

// Incidents returns ongoing incidents and those resolved within the recent window.
func (s *Service) Incidents(ctx context.Context) (*IncidentsView, error) {
	active, err := s.incidents.List(ctx, incidents.ListFilter{State: incidents.StateActive, Limit: s.config.ActiveLimit})
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}

	since := time.Now().Add(-s.config.RecentWindow)
	recent, err := s.incidents.List(ctx, incidents.ListFilter{
		State:         incidents.StateResolved,
		ResolvedSince: &since,
		Limit:         s.config.RecentLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list recent incidents: %w", err)
	}

	return &IncidentsView{ActiveIncidents: active, RecentIncidents: recent}, nil
}

// Invalidate drops the cached summary and any rebuild still in flight.
func (s *Service) Invalidate() {
	s.generation.Add(1)
	s.cache.DeleteAll()
}

// Snapshot implements live.Snapshotter.
func (s *Service) Snapshot(ctx context.Context, topic live.Topic) (any, error) {
	if id, ok := topic.IncidentID(); ok {
		return s.incidents.Get(ctx, id)
	}
	switch topic {
	case live.TopicServices:
		return s.Services(ctx)
	case live.TopicIncidents:
		return s.Incidents(ctx)
	}
	return nil, live.ErrInvalidTopic
}

// Watch invalidates the cache on every service or incident change until ctx
// is cancelled.
func (s *Service) Watch(ctx context.Context, hub *live.Hub) {
	for {
		err := s.watchOnce(ctx, hub)
		if ctx.Err() != nil || errors.Is(err, live.ErrClosed) {
			return
		}
		slog.Warn("status cache watcher resubscribing", "error", err)
		s.Invalidate()
	}
}

func (s *Service) watchOnce(ctx context.Context, hub *live.Hub) error {
	servicesSub := hub.Subscribe(live.TopicServices)
	defer servicesSub.Close()
	incidentsSub := hub.Subscribe(live.TopicIncidents)
	defer incidentsSub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-servicesSub.C():
			if !ok {
				return servicesSub.Err()
			}
			if msg.Kind == live.MessageChange {
				s.Invalidate()
			}
		case msg, ok := <-incidentsSub.C():
			if !ok {
				return incidentsSub.Err()
			}
			if msg.Kind == live.MessageChange {
				s.Invalidate()
			}
		}
	}
}
