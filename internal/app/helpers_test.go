//go:build integration

package app_test

import (
	"net/http"
	"testing"

	"github.com/bissquit/statuspage/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type serviceResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type updateResult struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Status string `json:"status"`
}

type incidentResult struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Impact     string         `json:"impact"`
	Status     string         `json:"status"`
	Services   []string       `json:"services"`
	Updates    []updateResult `json:"updates"`
	CreatedBy  string         `json:"created_by"`
	ResolvedAt *string        `json:"resolved_at"`
}

// operator returns a validating client signed in as a new account.
func operator(t *testing.T) *testutil.Client {
	t.Helper()
	client := newTestClient(t)
	client.RegisterAndLogin(t)
	return client
}

// uniqueName keeps service names distinct across tests sharing a database.
func uniqueName(prefix string) string {
	return prefix + " " + uuid.NewString()[:8]
}

// createService registers a service and removes it when the test ends.
func createService(t *testing.T, client *testutil.Client, name, status string) serviceResult {
	t.Helper()

	payload := map[string]string{"name": name}
	if status != "" {
		payload["status"] = status
	}
	resp, err := client.POST("/api/v1/services", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data serviceResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	t.Cleanup(func() {
		resp, err := client.DELETE("/api/v1/services/" + result.Data.ID)
		if err == nil {
			_ = resp.Body.Close()
		}
	})
	return result.Data
}

// createIncident opens an incident against the given services.
func createIncident(t *testing.T, client *testutil.Client, title, description string, serviceIDs ...string) incidentResult {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", map[string]any{
		"title":       title,
		"description": description,
		"impact":      "major",
		"services":    serviceIDs,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data incidentResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func getIncident(t *testing.T, client *testutil.Client, id string) incidentResult {
	t.Helper()

	resp, err := client.GET("/api/v1/incidents/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data incidentResult `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}
