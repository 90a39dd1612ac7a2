package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/incidents"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

const (
	incidentsPath     = "/dashboard/incidents"
	incidentListLimit = 100
)

type incidentListView struct {
	State     incidents.State
	Incidents []domain.Incident
	Directory serviceDirectory
}

// IncidentList handles GET /dashboard/incidents.
func (h *Handler) IncidentList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := incidents.State(r.URL.Query().Get("state"))
	if !state.IsValid() {
		state = incidents.StateAll
	}
	view := incidentListView{State: state}
	data := pageData{Title: "Incidents"}
	status := http.StatusOK

	list, err := h.incidents.List(ctx, incidents.ListFilter{State: state, Limit: incidentListLimit})
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to list incidents", slog.Any("error", err))
		data.Flash = h.backendFlash()
		status = http.StatusInternalServerError
	}
	view.Incidents = list

	services, err := h.services.ListServices(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to list services", slog.Any("error", err))
	}
	view.Directory = newServiceDirectory(services)

	data.Data = view
	h.render(w, r, status, "incidents", data)
}

type incidentForm struct {
	Title       string
	Description string
	Impact      string
	Status      string
	ServiceIDs  []string
}

// Selected reports whether the service was checked on the submitted form.
func (f incidentForm) Selected(id string) bool {
	for _, s := range f.ServiceIDs {
		if s == id {
			return true
		}
	}
	return false
}

type newIncidentView struct {
	Form     incidentForm
	Services []domain.Service
}

// NewIncidentForm handles GET /dashboard/incidents/new.
func (h *Handler) NewIncidentForm(w http.ResponseWriter, r *http.Request) {
	h.renderIncidentForm(w, r, http.StatusOK, pageData{}, incidentForm{
		Impact: string(domain.ImpactMinor),
		Status: string(domain.IncidentStatusInvestigating),
	})
}

func (h *Handler) renderIncidentForm(w http.ResponseWriter, r *http.Request, status int, data pageData, form incidentForm) {
	services, err := h.services.ListServices(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to list services", slog.Any("error", err))
		data.Flash = h.backendFlash()
		status = http.StatusInternalServerError
	}
	data.Title = "New Incident"
	data.Data = newIncidentView{Form: form, Services: services}
	h.render(w, r, status, "incident_new", data)
}

// CreateIncident handles POST /dashboard/incidents.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.renderIncidentForm(w, r, http.StatusBadRequest, pageData{Error: "Invalid form submission."}, incidentForm{})
		return
	}
	form := incidentForm{
		Title:       r.PostForm.Get("title"),
		Description: r.PostForm.Get("description"),
		Impact:      r.PostForm.Get("impact"),
		Status:      r.PostForm.Get("status"),
		ServiceIDs:  r.PostForm["services"],
	}

	incident, err := h.incidents.Create(ctx, incidents.CreateIncidentInput{
		Title:       form.Title,
		Description: form.Description,
		Impact:      domain.Impact(strings.ToLower(form.Impact)),
		Status:      domain.IncidentStatus(strings.ToLower(form.Status)),
		ServiceIDs:  form.ServiceIDs,
	}, httputil.GetUserID(ctx))
	if err != nil {
		if msg, ok := incidentValidationMessage(err); ok {
			h.renderIncidentForm(w, r, http.StatusBadRequest, pageData{Error: msg}, form)
			return
		}
		ctxlog.FromContext(ctx).Error("failed to create incident", slog.Any("error", err))
		h.renderIncidentForm(w, r, http.StatusInternalServerError, pageData{Flash: h.backendFlash()}, form)
		return
	}

	h.setFlash(w, FlashSuccess, "Incident created.")
	http.Redirect(w, r, incidentsPath+"/"+incident.ID, http.StatusSeeOther)
}

type incidentDetailView struct {
	Incident  *domain.Incident
	Directory serviceDirectory
	// Text and Status keep a rejected update on screen.
	Text   string
	Status string
}

// IncidentDetail handles GET /dashboard/incidents/{id}.
func (h *Handler) IncidentDetail(w http.ResponseWriter, r *http.Request) {
	h.renderIncident(w, r, http.StatusOK, pageData{}, incidentDetailView{})
}

// renderIncident loads the incident named in the URL and renders its page.
func (h *Handler) renderIncident(w http.ResponseWriter, r *http.Request, status int, data pageData, view incidentDetailView) {
	ctx := r.Context()
	data.Title = "Incident"

	incident, err := h.incidents.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, incidents.ErrIncidentNotFound) {
			h.incidentNotFound(w, r)
			return
		}
		ctxlog.FromContext(ctx).Error("failed to get incident", slog.Any("error", err))
		data.Flash = h.backendFlash()
		data.Data = view
		h.render(w, r, http.StatusInternalServerError, "incident_detail", data)
		return
	}

	services, err := h.services.ListServices(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to list services", slog.Any("error", err))
	}

	view.Incident = incident
	view.Directory = newServiceDirectory(services)
	data.Title = incident.Title
	data.Data = view
	h.render(w, r, status, "incident_detail", data)
}

// PostUpdate handles POST /dashboard/incidents/{id}/updates. Submitting an
// empty update changes nothing.
func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "incident_id", id)
	text := r.PostFormValue("text")
	status := r.PostFormValue("status")

	_, appended, err := h.incidents.PostUpdate(ctx, incidents.PostUpdateInput{
		IncidentID: id,
		Text:       text,
		Status:     domain.IncidentStatus(strings.ToLower(status)),
	})
	if err != nil {
		view := incidentDetailView{Text: text, Status: status}
		switch {
		case errors.Is(err, incidents.ErrIncidentNotFound):
			h.incidentNotFound(w, r)
		case errors.Is(err, incidents.ErrInvalidStatus):
			h.renderIncident(w, r, http.StatusBadRequest, pageData{Error: "Choose a valid status."}, view)
		default:
			ctxlog.FromContext(ctx).Error("failed to post update", slog.Any("error", err))
			h.renderIncident(w, r, http.StatusInternalServerError, pageData{Flash: h.backendFlash()}, view)
		}
		return
	}

	if appended {
		h.setFlash(w, FlashSuccess, "Update posted.")
	}
	http.Redirect(w, r, incidentsPath+"/"+id, http.StatusSeeOther)
}

// ResolveIncident handles POST /dashboard/incidents/{id}/resolve.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "incident_id", id)

	_, changed, err := h.incidents.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, incidents.ErrIncidentNotFound) {
			h.incidentNotFound(w, r)
			return
		}
		ctxlog.FromContext(ctx).Error("failed to resolve incident", slog.Any("error", err))
		h.renderIncident(w, r, http.StatusInternalServerError, pageData{Flash: h.backendFlash()}, incidentDetailView{})
		return
	}

	if changed {
		h.setFlash(w, FlashSuccess, "Incident resolved.")
	}
	http.Redirect(w, r, incidentsPath+"/"+id, http.StatusSeeOther)
}

func incidentValidationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, incidents.ErrTitleRequired):
		return "Title is required.", true
	case errors.Is(err, incidents.ErrServicesRequired):
		return "Select at least one affected service.", true
	case errors.Is(err, incidents.ErrInvalidImpact):
		return "Choose a valid impact.", true
	case errors.Is(err, incidents.ErrInvalidStatus):
		return "Choose a valid status.", true
	}
	return "", false
}
