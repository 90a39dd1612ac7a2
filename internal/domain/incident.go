package domain

import (
	"fmt"
	"strings"
	"time"
)

// IncidentStatus represents the lifecycle stage of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IncidentStatuses returns all incident statuses in lifecycle order.
func IncidentStatuses() []IncidentStatus {
	return []IncidentStatus{
		IncidentStatusInvestigating,
		IncidentStatusIdentified,
		IncidentStatusMonitoring,
		IncidentStatusResolved,
	}
}

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusInvestigating, IncidentStatusIdentified,
		IncidentStatusMonitoring, IncidentStatusResolved:
		return true
	}
	return false
}

// IsResolved returns true for the terminal status.
func (s IncidentStatus) IsResolved() bool {
	return s == IncidentStatusResolved
}

// ParseIncidentStatus parses an incident status, case-insensitively.
func ParseIncidentStatus(s string) (IncidentStatus, error) {
	st := IncidentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown incident status %q", s)
	}
	return st, nil
}

// Impact describes how badly an incident affects users.
type Impact string

// Impact levels.
const (
	ImpactMinor    Impact = "minor"
	ImpactMajor    Impact = "major"
	ImpactCritical Impact = "critical"
)

// Impacts returns all impact levels from least to most severe.
func Impacts() []Impact {
	return []Impact{ImpactMinor, ImpactMajor, ImpactCritical}
}

// IsValid checks if the impact is valid.
func (i Impact) IsValid() bool {
	switch i {
	case ImpactMinor, ImpactMajor, ImpactCritical:
		return true
	}
	return false
}

// ParseImpact parses an impact level, case-insensitively.
func ParseImpact(s string) (Impact, error) {
	i := Impact(strings.ToLower(strings.TrimSpace(s)))
	if !i.IsValid() {
		return "", fmt.Errorf("unknown impact %q", s)
	}
	return i, nil
}

// Incident represents a recorded disruption.
type Incident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Impact      Impact           `json:"impact"`
	Status      IncidentStatus   `json:"status"`
	ServiceIDs  []string         `json:"services"`
	Updates     []IncidentUpdate `json:"updates"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// IsResolved returns true once the incident has been resolved.
func (i *Incident) IsResolved() bool {
	return i.Status.IsResolved()
}

// AffectsService reports whether the incident lists the service.
func (i *Incident) AffectsService(serviceID string) bool {
	for _, id := range i.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// LatestUpdate returns the most recent update, or nil.
func (i *Incident) LatestUpdate() *IncidentUpdate {
	if len(i.Updates) == 0 {
		return nil
	}
	return &i.Updates[len(i.Updates)-1]
}

// IncidentUpdate is one entry of an incident's timeline.
type IncidentUpdate struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Status    IncidentStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// Texts of updates synthesized by the system.
const (
	InitialUpdatePrefix = "Incident identified: "
	ResolvedUpdateText  = "Incident resolved"
)
