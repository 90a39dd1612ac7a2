// Package incidents provides HTTP handlers and business logic for the incident lifecycle.
package incidents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterPublicRoutes registers read-only incident routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/incidents", h.ListIncidents)
	r.Get("/incidents/{id}", h.GetIncident)
}

// RegisterRoutes registers routes that require authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents", h.CreateIncident)
	r.Post("/incidents/{id}/updates", h.PostUpdate)
	r.Post("/incidents/{id}/resolve", h.Resolve)
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	Title       string   `json:"title" validate:"required,max=500"`
	Description string   `json:"description"`
	Impact      string   `json:"impact" validate:"omitempty,oneof=minor major critical"`
	Status      string   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	Services    []string `json:"services" validate:"required,min=1,dive,required"`
}

// PostUpdateRequest represents the request body for posting an incident update.
type PostUpdateRequest struct {
	Text   string `json:"text"`
	Status string `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
}

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		State:     State(q.Get("state")),
		ServiceID: q.Get("service_id"),
	}
	if filter.State != "" && !filter.State.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "state must be one of: all, active, resolved")
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 200 {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	incidents, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incidents)
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// CreateIncident handles POST /incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if !httputil.Bind(w, r, &req, h.validator) {
		return
	}

	input := CreateIncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Impact:      domain.Impact(req.Impact),
		Status:      domain.IncidentStatus(req.Status),
		ServiceIDs:  req.Services,
	}

	incident, err := h.service.Create(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// PostUpdate handles POST /incidents/{id}/updates.
// A blank text is accepted and ignored; the unchanged incident is returned with 200.
func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	var req PostUpdateRequest
	if !httputil.Bind(w, r, &req, h.validator) {
		return
	}

	id := chi.URLParam(r, "id")
	incident, appended, err := h.service.PostUpdate(r.Context(), PostUpdateInput{
		IncidentID: id,
		Text:       req.Text,
		Status:     domain.IncidentStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if !appended {
		incident, err = h.service.Get(r.Context(), id)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		httputil.Success(w, http.StatusOK, incident)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	incident, _, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrIncidentNotFound):
		httputil.Error(w, http.StatusNotFound, "incident not found")
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrServicesRequired),
		errors.Is(err, ErrInvalidImpact),
		errors.Is(err, ErrInvalidStatus):
		httputil.ValidationError(w, err)
	default:
		httputil.HandleError(r.Context(), w, err, nil)
	}
}
