package web

import (
	"log/slog"
	"net/http"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/statuspage"
)

// serviceDirectory resolves service IDs to display names in templates.
type serviceDirectory map[string]string

func newServiceDirectory(services []domain.Service) serviceDirectory {
	d := make(serviceDirectory, len(services))
	for _, s := range services {
		d[s.ID] = s.Name
	}
	return d
}

// Names returns display names for ids. Unknown services keep their ID.
func (d serviceDirectory) Names(ids []string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := d[id]; ok {
			names[i] = name
		} else {
			names[i] = id
		}
	}
	return names
}

type statusView struct {
	Summary  *statuspage.Summary
	Services serviceDirectory
}

// StatusPage handles GET /.
func (h *Handler) StatusPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "System Status", UserID: h.currentUserID(r)}

	summary, err := h.status.Summary(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed to load status summary", slog.Any("error", err))
		data.Flash = h.backendFlash()
		data.Data = statusView{}
		h.render(w, r, http.StatusInternalServerError, "status", data)
		return
	}

	data.Data = statusView{Summary: summary, Services: newServiceDirectory(summary.Services)}
	h.render(w, r, http.StatusOK, "status", data)
}

type notFoundView struct {
	Message   string
	BackURL   string
	BackLabel string
}

// NotFound renders the 404 page for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found", pageData{
		Title:  "Not Found",
		UserID: h.currentUserID(r),
		Data: notFoundView{
			Message:   "The page you are looking for does not exist.",
			BackURL:   "/",
			BackLabel: "Back to Status",
		},
	})
}

func (h *Handler) incidentNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found", pageData{
		Title: "Incident Not Found",
		Data: notFoundView{
			Message:   "This incident does not exist or has been removed.",
			BackURL:   incidentsPath,
			BackLabel: "Back to Incidents",
		},
	})
}

func (h *Handler) serviceNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found", pageData{
		Title: "Service Not Found",
		Data: notFoundView{
			Message:   "This service does not exist or has been removed.",
			BackURL:   dashboardPath + "?tab=services",
			BackLabel: "Back to Services",
		},
	})
}
