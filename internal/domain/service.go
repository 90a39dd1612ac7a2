package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses, in ascending order of severity.
const (
	ServiceStatusOperational         ServiceStatus = "operational"
	ServiceStatusDegradedPerformance ServiceStatus = "degraded_performance"
	ServiceStatusPartialOutage       ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage         ServiceStatus = "major_outage"
)

var serviceStatuses = []ServiceStatus{
	ServiceStatusOperational,
	ServiceStatusDegradedPerformance,
	ServiceStatusPartialOutage,
	ServiceStatusMajorOutage,
}

var serviceStatusLabels = map[ServiceStatus]string{
	ServiceStatusOperational:         "Operational",
	ServiceStatusDegradedPerformance: "Degraded Performance",
	ServiceStatusPartialOutage:       "Partial Outage",
	ServiceStatusMajorOutage:         "Major Outage",
}

// ServiceStatuses returns all statuses ordered by severity.
func ServiceStatuses() []ServiceStatus {
	out := make([]ServiceStatus, len(serviceStatuses))
	copy(out, serviceStatuses)
	return out
}

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	_, ok := serviceStatusLabels[s]
	return ok
}

// Severity returns the ordinal rank of the status. Unknown values rank as operational.
func (s ServiceStatus) Severity() int {
	for i, st := range serviceStatuses {
		if st == s {
			return i
		}
	}
	return 0
}

// Label returns the human readable name of the status.
func (s ServiceStatus) Label() string {
	if l, ok := serviceStatusLabels[s]; ok {
		return l
	}
	return serviceStatusLabels[ServiceStatusOperational]
}

func (s ServiceStatus) String() string {
	return string(s)
}

// ParseServiceStatus parses either a status identifier ("partial_outage")
// or its label ("Partial Outage"), case-insensitively.
func ParseServiceStatus(s string) (ServiceStatus, error) {
	v := strings.TrimSpace(s)
	for _, st := range serviceStatuses {
		if strings.EqualFold(v, string(st)) || strings.EqualFold(v, serviceStatusLabels[st]) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown service status %q", s)
}

// AggregateStatus returns the most severe status across services.
// An empty list is operational.
func AggregateStatus(services []Service) ServiceStatus {
	statuses := make([]ServiceStatus, 0, len(services))
	for _, s := range services {
		statuses = append(statuses, s.Status)
	}
	return AggregateStatuses(statuses)
}

// AggregateStatuses is AggregateStatus over bare status values.
func AggregateStatuses(statuses []ServiceStatus) ServiceStatus {
	if len(statuses) == 0 {
		return ServiceStatusOperational
	}

	worst := 0
	for _, s := range statuses {
		if sev := s.Severity(); sev > worst {
			worst = sev
		}
	}
	return serviceStatuses[worst]
}

// Service represents a monitored service.
type Service struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    ServiceStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
