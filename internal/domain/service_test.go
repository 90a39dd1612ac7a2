package domain

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ServiceStatus
		expected ServiceStatus
	}{
		{"empty list is operational", nil, ServiceStatusOperational},
		{"single operational", []ServiceStatus{ServiceStatusOperational}, ServiceStatusOperational},
		{
			"degraded wins over operational",
			[]ServiceStatus{ServiceStatusOperational, ServiceStatusDegradedPerformance},
			ServiceStatusDegradedPerformance,
		},
		{
			"partial outage wins over degraded",
			[]ServiceStatus{ServiceStatusDegradedPerformance, ServiceStatusPartialOutage, ServiceStatusOperational},
			ServiceStatusPartialOutage,
		},
		{
			"major outage always wins",
			[]ServiceStatus{ServiceStatusMajorOutage, ServiceStatusOperational, ServiceStatusPartialOutage},
			ServiceStatusMajorOutage,
		},
		{
			"unknown value ranks as operational",
			[]ServiceStatus{"maintenance", ServiceStatusOperational},
			ServiceStatusOperational,
		},
		{
			"unknown value does not mask degraded",
			[]ServiceStatus{"", ServiceStatusDegradedPerformance},
			ServiceStatusDegradedPerformance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := make([]Service, 0, len(tt.statuses))
			for _, s := range tt.statuses {
				services = append(services, Service{Status: s})
			}

			assert.Equal(t, tt.expected, AggregateStatus(services))
			assert.Equal(t, tt.expected, AggregateStatuses(tt.statuses))
		})
	}
}

func TestAggregateStatus_IsMaxSeverityAndOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	all := ServiceStatuses()

	for i := 0; i < 200; i++ {
		n := rng.Intn(8)
		statuses := make([]ServiceStatus, n)
		maxSev := 0
		for j := range statuses {
			statuses[j] = all[rng.Intn(len(all))]
			if sev := statuses[j].Severity(); sev > maxSev {
				maxSev = sev
			}
		}

		got := AggregateStatuses(statuses)
		require.Equal(t, maxSev, got.Severity(), "statuses=%v", statuses)

		rng.Shuffle(len(statuses), func(a, b int) { statuses[a], statuses[b] = statuses[b], statuses[a] })
		require.Equal(t, got, AggregateStatuses(statuses))
	}
}

func TestServiceStatus_Severity(t *testing.T) {
	assert.Equal(t, 0, ServiceStatusOperational.Severity())
	assert.Equal(t, 1, ServiceStatusDegradedPerformance.Severity())
	assert.Equal(t, 2, ServiceStatusPartialOutage.Severity())
	assert.Equal(t, 3, ServiceStatusMajorOutage.Severity())
	assert.Equal(t, 0, ServiceStatus("bogus").Severity())
}

func TestParseServiceStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected ServiceStatus
		wantErr  bool
	}{
		{"operational", ServiceStatusOperational, false},
		{"Degraded Performance", ServiceStatusDegradedPerformance, false},
		{"  partial_outage ", ServiceStatusPartialOutage, false},
		{"MAJOR OUTAGE", ServiceStatusMajorOutage, false},
		{"maintenance", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseServiceStatus(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestServiceStatuses_ReturnsCopy(t *testing.T) {
	got := ServiceStatuses()
	got[0] = "changed"

	want := []ServiceStatus{
		ServiceStatusOperational,
		ServiceStatusDegradedPerformance,
		ServiceStatusPartialOutage,
		ServiceStatusMajorOutage,
	}
	if diff := cmp.Diff(want, ServiceStatuses()); diff != "" {
		t.Errorf("ServiceStatuses() mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceStatus_Label(t *testing.T) {
	assert.Equal(t, "Degraded Performance", ServiceStatusDegradedPerformance.Label())
	assert.Equal(t, "Operational", ServiceStatus("unknown").Label())
}
