//go:build integration

package app_test

import (
	"net/http"
	"testing"

	"github.com/bissquit/statuspage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidents_Lifecycle(t *testing.T) {
	client := operator(t)
	svc := createService(t, client, uniqueName("Checkout"), "")

	incident := createIncident(t, client, "Checkout errors", "Payments are failing", svc.ID)
	assert.Equal(t, "investigating", incident.Status)
	assert.Equal(t, "major", incident.Impact)
	assert.Equal(t, []string{svc.ID}, incident.Services)
	assert.NotEmpty(t, incident.CreatedBy)
	require.Len(t, incident.Updates, 1)
	assert.Equal(t, "Incident identified: Payments are failing", incident.Updates[0].Text)

	resp, err := client.POST("/api/v1/incidents/"+incident.ID+"/updates", map[string]string{
		"text":   "Rolled back the deploy",
		"status": "monitoring",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var updated struct {
		Data incidentResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "monitoring", updated.Data.Status)
	require.Len(t, updated.Data.Updates, 2)
	assert.Equal(t, "Rolled back the deploy", updated.Data.Updates[1].Text)

	resp, err = client.POST("/api/v1/incidents/"+incident.ID+"/resolve", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	got := getIncident(t, client, incident.ID)
	assert.Equal(t, "resolved", got.Status)
	assert.NotNil(t, got.ResolvedAt)

	// A second resolve is accepted and changes nothing.
	resp, err = client.POST("/api/v1/incidents/"+incident.ID+"/resolve", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Len(t, getIncident(t, client, incident.ID).Updates, len(got.Updates))
}

func TestIncidents_EmptyUpdateIsIgnored(t *testing.T) {
	client := operator(t)
	svc := createService(t, client, uniqueName("Search"), "")
	incident := createIncident(t, client, "Slow search", "Queries time out", svc.ID)

	resp, err := client.POST("/api/v1/incidents/"+incident.ID+"/updates", map[string]string{"text": "   "})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	assert.Len(t, getIncident(t, client, incident.ID).Updates, 1)
}

func TestIncidents_CreateValidation(t *testing.T) {
	client := operator(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{name: "missing title", payload: map[string]any{"title": "", "services": []string{"api"}}},
		{name: "no services", payload: map[string]any{"title": "Outage", "services": []string{}}},
		{name: "unknown impact", payload: map[string]any{"title": "Outage", "services": []string{"api"}, "impact": "apocalyptic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.SetT(t)
			resp, err := client.POST("/api/v1/incidents", tt.payload)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestIncidents_ListByState(t *testing.T) {
	client := operator(t)
	svc := createService(t, client, uniqueName("Mail"), "")
	open := createIncident(t, client, "Mail delayed", "Queues are backed up", svc.ID)
	closed := createIncident(t, client, "Mail bounced", "DNS misconfiguration", svc.ID)

	resp, err := client.POST("/api/v1/incidents/"+closed.ID+"/resolve", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ids := func(state string) []string {
		resp, err := client.GET("/api/v1/incidents?state=" + state + "&service_id=" + svc.ID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result struct {
			Data []incidentResult `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		out := make([]string, 0, len(result.Data))
		for _, inc := range result.Data {
			out = append(out, inc.ID)
		}
		return out
	}

	assert.Equal(t, []string{open.ID}, ids("active"))
	assert.Equal(t, []string{closed.ID}, ids("resolved"))
	assert.ElementsMatch(t, []string{open.ID, closed.ID}, ids("all"))
}

func TestIncidents_NotFound(t *testing.T) {
	client := operator(t)

	for _, path := range []string{
		"/api/v1/incidents/00000000-0000-0000-0000-000000000000",
		"/api/v1/incidents/not-a-uuid",
	} {
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		_ = resp.Body.Close()
	}

	resp, err := client.POST("/api/v1/incidents/00000000-0000-0000-0000-000000000000/updates", map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
