package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bissquit/statuspage/internal/catalog"
	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/incidents"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/go-chi/chi/v5"
)

// Dashboard tabs.
const (
	tabServices  = "services"
	tabIncidents = "incidents"
)

type serviceForm struct {
	Name   string
	Status string
}

type dashboardView struct {
	Tab       string
	Overall   domain.ServiceStatus
	Services  []domain.Service
	Incidents []domain.Incident
	Directory serviceDirectory
	Form      serviceForm
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, r.URL.Query().Get("tab"), pageData{}, serviceForm{})
}

func (h *Handler) renderDashboard(w http.ResponseWriter, r *http.Request, status int, tab string, data pageData, form serviceForm) {
	ctx := r.Context()
	if tab != tabIncidents {
		tab = tabServices
	}
	view := dashboardView{Tab: tab, Form: form}

	services, err := h.services.ListServices(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to list services", slog.Any("error", err))
		data.Flash = h.backendFlash()
		status = http.StatusInternalServerError
	}
	view.Services = services
	view.Directory = newServiceDirectory(services)
	view.Overall = domain.AggregateStatus(services)

	if tab == tabIncidents && err == nil {
		active, err := h.incidents.List(ctx, incidents.ListFilter{State: incidents.StateActive})
		if err != nil {
			ctxlog.FromContext(ctx).Error("failed to list incidents", slog.Any("error", err))
			data.Flash = h.backendFlash()
			status = http.StatusInternalServerError
		}
		view.Incidents = active
	}

	data.Title = "Dashboard"
	data.Data = view
	h.render(w, r, status, "dashboard", data)
}

// CreateService handles POST /dashboard/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := serviceForm{
		Name:   strings.TrimSpace(r.PostFormValue("name")),
		Status: r.PostFormValue("status"),
	}

	input := catalog.CreateServiceInput{Name: form.Name}
	if form.Status != "" {
		st, err := domain.ParseServiceStatus(form.Status)
		if err != nil {
			h.renderDashboard(w, r, http.StatusBadRequest, tabServices, pageData{Error: "Choose a valid status."}, form)
			return
		}
		input.Status = st
	}

	svc, err := h.services.CreateService(ctx, input)
	if err != nil {
		h.serviceWriteFailed(w, r, err, form)
		return
	}

	h.setFlash(w, FlashSuccess, "Service "+svc.Name+" added.")
	http.Redirect(w, r, dashboardPath+"?tab="+tabServices, http.StatusSeeOther)
}

// UpdateService handles POST /dashboard/services/{id}. Blank fields are left
// unchanged.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var input catalog.UpdateServiceInput
	if name := strings.TrimSpace(r.PostFormValue("name")); name != "" {
		input.Name = &name
	}
	if raw := r.PostFormValue("status"); raw != "" {
		st, err := domain.ParseServiceStatus(raw)
		if err != nil {
			h.renderDashboard(w, r, http.StatusBadRequest, tabServices, pageData{Error: "Choose a valid status."}, serviceForm{})
			return
		}
		input.Status = &st
	}

	svc, err := h.services.UpdateService(ctx, id, input)
	if err != nil {
		h.serviceWriteFailed(w, r, err, serviceForm{})
		return
	}

	h.setFlash(w, FlashSuccess, "Service "+svc.Name+" is now "+svc.Status.Label()+".")
	http.Redirect(w, r, dashboardPath+"?tab="+tabServices, http.StatusSeeOther)
}

// DeleteService handles POST /dashboard/services/{id}/delete.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.services.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.serviceWriteFailed(w, r, err, serviceForm{})
		return
	}

	h.setFlash(w, FlashSuccess, "Service removed.")
	http.Redirect(w, r, dashboardPath+"?tab="+tabServices, http.StatusSeeOther)
}

func (h *Handler) serviceWriteFailed(w http.ResponseWriter, r *http.Request, err error, form serviceForm) {
	switch {
	case errors.Is(err, catalog.ErrNameRequired):
		h.renderDashboard(w, r, http.StatusBadRequest, tabServices, pageData{Error: "Service name is required."}, form)
	case errors.Is(err, catalog.ErrInvalidStatus):
		h.renderDashboard(w, r, http.StatusBadRequest, tabServices, pageData{Error: "Choose a valid status."}, form)
	case errors.Is(err, catalog.ErrNoChanges):
		h.renderDashboard(w, r, http.StatusBadRequest, tabServices, pageData{Error: "Enter a new name or pick a status."}, form)
	case errors.Is(err, catalog.ErrServiceNotFound):
		h.serviceNotFound(w, r)
	default:
		ctxlog.FromContext(r.Context()).Error("service write failed", slog.Any("error", err))
		h.renderDashboard(w, r, http.StatusInternalServerError, tabServices, pageData{Flash: h.backendFlash()}, form)
	}
}
