package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := NewService(newMockRepository(), nil)
	h := NewHandler(svc)

	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	h.RegisterRoutes(r)
	return r, svc
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateService(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"name":"API"}`, wantStatus: http.StatusCreated},
		{name: "label status", body: `{"name":"API","status":"Partial Outage"}`, wantStatus: http.StatusCreated},
		{name: "missing name", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "unknown status", body: `{"name":"API","status":"on fire"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t)

			rec := doRequest(router, http.MethodPost, "/services", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_ListServices_IncludesOverallStatus(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := context.Background()
	_, err := svc.CreateService(ctx, CreateServiceInput{Name: "A"})
	require.NoError(t, err)
	_, err = svc.CreateService(ctx, CreateServiceInput{Name: "B", Status: domain.ServiceStatusMajorOutage})
	require.NoError(t, err)

	rec := doRequest(router, http.MethodGet, "/services", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data ServiceListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Services, 2)
	assert.Equal(t, domain.ServiceStatusMajorOutage, resp.Data.OverallStatus)
}

func TestHandler_GetService_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/services/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "service not found")
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.CreateService(context.Background(), CreateServiceInput{Name: "API"})
	require.NoError(t, err)

	rec := doRequest(router, http.MethodPatch, "/services/"+created.ID, `{"status":"degraded_performance"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded_performance"`)

	rec = doRequest(router, http.MethodPatch, "/services/"+created.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodDelete, "/services/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodDelete, "/services/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
