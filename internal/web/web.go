// Package web serves the server-rendered browser front: the public status
// page, the login and registration forms and the operator dashboard.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/bissquit/statuspage/internal/catalog"
	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/identity"
	"github.com/bissquit/statuspage/internal/incidents"
	"github.com/bissquit/statuspage/internal/statuspage"
	"github.com/go-chi/chi/v5"
)

// StatusSource provides the public status view.
type StatusSource interface {
	Summary(ctx context.Context) (*statuspage.Summary, error)
}

// ServiceManager manages the service registry.
type ServiceManager interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	CreateService(ctx context.Context, input catalog.CreateServiceInput) (*domain.Service, error)
	UpdateService(ctx context.Context, id string, input catalog.UpdateServiceInput) (*domain.Service, error)
	DeleteService(ctx context.Context, id string) error
}

// IncidentManager manages incident records.
type IncidentManager interface {
	Create(ctx context.Context, input incidents.CreateIncidentInput, createdBy string) (*domain.Incident, error)
	Get(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter incidents.ListFilter) ([]domain.Incident, error)
	PostUpdate(ctx context.Context, input incidents.PostUpdateInput) (*domain.Incident, bool, error)
	Resolve(ctx context.Context, id string) (*domain.Incident, bool, error)
}

// Accounts handles registration and sessions.
type Accounts interface {
	Register(ctx context.Context, input identity.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, input identity.LoginInput) (*domain.User, *identity.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (string, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Config configures the browser front.
type Config struct {
	Cookies identity.CookieSettings
	// FlashDuration is how long a backend error message stays visible.
	FlashDuration time.Duration
}

// Handler serves the browser routes.
type Handler struct {
	status    StatusSource
	services  ServiceManager
	incidents IncidentManager
	accounts  Accounts
	config    Config
	pages     *pages
}

// NewHandler creates a new web handler. It fails if the embedded templates
// do not parse.
func NewHandler(status StatusSource, services ServiceManager, incidentManager IncidentManager, accounts Accounts, config Config) (*Handler, error) {
	if config.FlashDuration <= 0 {
		config.FlashDuration = 5 * time.Second
	}
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Handler{
		status:    status,
		services:  services,
		incidents: incidentManager,
		accounts:  accounts,
		config:    config,
		pages:     p,
	}, nil
}

// Routes returns the browser router, gzip-compressed.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(h.NotFound)

	r.Get("/", h.StatusPage)
	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/", h.Dashboard)
		r.Post("/services", h.CreateService)
		r.Post("/services/{id}", h.UpdateService)
		r.Post("/services/{id}/delete", h.DeleteService)

		r.Get("/incidents", h.IncidentList)
		r.Get("/incidents/new", h.NewIncidentForm)
		r.Post("/incidents", h.CreateIncident)
		r.Get("/incidents/{id}", h.IncidentDetail)
		r.Post("/incidents/{id}/updates", h.PostUpdate)
		r.Post("/incidents/{id}/resolve", h.ResolveIncident)
	})

	return gziphandler.GzipHandler(r)
}
