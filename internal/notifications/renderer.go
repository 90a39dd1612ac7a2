package notifications

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var (
	subjectPrefixes = map[MessageType]string{
		MessageTypeCreated:  "Incident",
		MessageTypeUpdated:  "Update",
		MessageTypeResolved: "Resolved",
	}

	statusEmojis = map[domain.IncidentStatus]string{
		domain.IncidentStatusInvestigating: "🔍",
		domain.IncidentStatusIdentified:    "🔎",
		domain.IncidentStatusMonitoring:    "👀",
		domain.IncidentStatusResolved:      "✅",
	}

	impactEmojis = map[domain.Impact]string{
		domain.ImpactMinor:    "🟡",
		domain.ImpactMajor:    "🟠",
		domain.ImpactCritical: "🔴",
	}
)

// Renderer turns a payload into chat message text. There is one template per
// channel type and message type, named "<channel>_<message>.tmpl".
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("notifications").Funcs(template.FuncMap{
		"title":          titleCase,
		"upper":          strings.ToUpper,
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"statusEmoji":    statusEmoji,
		"impactEmoji":    impactEmoji,
		"serviceNames":   serviceNames,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render returns the subject line and body for payload on a channel type.
func (r *Renderer) Render(channelType ChannelType, payload NotificationPayload) (subject, body string, err error) {
	name := fmt.Sprintf("%s_%s.tmpl", channelType, payload.MessageType)
	tmpl := r.templates.Lookup(name)
	if tmpl == nil {
		return "", "", fmt.Errorf("template not found: %s", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return renderSubject(payload), strings.TrimSpace(sb.String()), nil
}

func renderSubject(payload NotificationPayload) string {
	prefix, ok := subjectPrefixes[payload.MessageType]
	if !ok {
		prefix = "Notification"
	}
	return "[" + prefix + "] " + payload.Incident.Title
}

// cases.Caser is stateful, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

// formatDuration renders d as "45s", "12m", "3h" or "1h 30m". Seconds are
// dropped once d reaches a minute.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	d = d.Truncate(time.Minute)
	h, m := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func serviceNames(services []ServiceInfo) string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func statusEmoji(status string) string {
	if e, ok := statusEmojis[domain.IncidentStatus(strings.ToLower(status))]; ok {
		return e
	}
	return "📋"
}

func impactEmoji(impact string) string {
	if e, ok := impactEmojis[domain.Impact(strings.ToLower(impact))]; ok {
		return e
	}
	return "⚪"
}
