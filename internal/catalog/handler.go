// Package catalog provides HTTP handlers and business logic for the service registry.
package catalog

import (
	"net/http"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers read-only service routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/services/{id}", h.GetService)
}

// RegisterRoutes registers routes that require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/services", h.CreateService)
	r.Patch("/services/{id}", h.UpdateService)
	r.Delete("/services/{id}", h.DeleteService)
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	Status string `json:"status"`
}

// UpdateServiceRequest represents the request body for updating a service.
type UpdateServiceRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=255"`
	Status *string `json:"status"`
}

// ServiceListResponse is the body of GET /services.
type ServiceListResponse struct {
	Services      []domain.Service     `json:"services"`
	OverallStatus domain.ServiceStatus `json:"overall_status"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrNameRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrNoChanges, Status: http.StatusBadRequest},
}

// ListServices handles GET /services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, ServiceListResponse{
		Services:      services,
		OverallStatus: domain.AggregateStatus(services),
	})
}

// GetService handles GET /services/{id}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// CreateService handles POST /services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if !httputil.Bind(w, r, &req, h.validator) {
		return
	}

	input := CreateServiceInput{Name: req.Name}
	if req.Status != "" {
		status, err := domain.ParseServiceStatus(req.Status)
		if err != nil {
			httputil.ValidationError(w, err)
			return
		}
		input.Status = status
	}

	service, err := h.service.CreateService(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, service)
}

// UpdateService handles PATCH /services/{id}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req UpdateServiceRequest
	if !httputil.Bind(w, r, &req, h.validator) {
		return
	}

	input := UpdateServiceInput{Name: req.Name}
	if req.Status != nil {
		status, err := domain.ParseServiceStatus(*req.Status)
		if err != nil {
			httputil.ValidationError(w, err)
			return
		}
		input.Status = &status
	}

	service, err := h.service.UpdateService(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, service)
}

// DeleteService handles DELETE /services/{id}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
