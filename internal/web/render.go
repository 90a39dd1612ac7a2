package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{
	"status",
	"login",
	"register",
	"dashboard",
	"incidents",
	"incident_new",
	"incident_detail",
	"not_found",
	"error",
}

type pages struct {
	templates map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{templates: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// pageData is passed to every page template.
type pageData struct {
	Title     string
	UserID    string
	CSRFToken string
	Flash     *Flash
	// Error is an inline validation message for the submitted form.
	Error string
	Data  any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := h.pages.templates[name]
	if !ok {
		ctxlog.FromContext(r.Context()).Error("unknown page", slog.String("page", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if data.UserID == "" {
		data.UserID = httputil.GetUserID(r.Context())
	}
	if data.Flash == nil {
		data.Flash = h.popFlash(w, r)
	}
	data.CSRFToken = h.config.Cookies.EnsureCSRFCookie(w, r)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		ctxlog.FromContext(r.Context()).Error("render page", slog.String("page", name), slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error", pageData{Title: http.StatusText(status), Data: message})
}

var markdownPolicy = bluemonday.UGCPolicy()

var templateFuncs = template.FuncMap{
	"title":            title,
	"statusLabel":      func(s domain.ServiceStatus) string { return s.Label() },
	"statusClass":      statusClass,
	"statuses":         domain.ServiceStatuses,
	"incidentStatuses": domain.IncidentStatuses,
	"impacts":          domain.Impacts,
	"ago":              ago,
	"when":             when,
	"markdown":         markdown,
	"isResolved":       func(s domain.IncidentStatus) bool { return s.IsResolved() },
}

// title capitalizes enum values such as "investigating" or "major".
func title(v any) string {
	s := strings.ReplaceAll(fmt.Sprint(v), "_", " ")
	return cases.Title(language.English).String(s)
}

func statusClass(s domain.ServiceStatus) string {
	switch s {
	case domain.ServiceStatusOperational:
		return "ok"
	case domain.ServiceStatusDegradedPerformance:
		return "degraded"
	case domain.ServiceStatusPartialOutage:
		return "partial"
	case domain.ServiceStatusMajorOutage:
		return "major"
	default:
		return "unknown"
	}
}

// ago renders a relative time. Nil pointers render as an empty string.
func ago(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return humanize.Time(*t)
	}
	return ""
}

func when(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

// markdown renders update text as sanitized HTML.
func markdown(s string) template.HTML {
	unsafe := blackfriday.Run([]byte(s), blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak))
	return template.HTML(markdownPolicy.SanitizeBytes(unsafe)) //nolint:gosec // sanitized above
}
