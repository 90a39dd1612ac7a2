package incidents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := newTestService(newMockRepository(), nil, nil)
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(httputil.WithUserID(req.Context(), "user-1")))
		})
	})
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

func decodeIncident(t *testing.T, rec *httptest.ResponseRecorder) domain.Incident {
	t.Helper()
	var resp struct {
		Data domain.Incident `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestHandler_CreateIncident(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid", body: `{"title":"Outage","description":"db","services":["s1"]}`, wantStatus: http.StatusCreated},
		{name: "missing title", body: `{"services":["s1"]}`, wantStatus: http.StatusBadRequest},
		{name: "blank title", body: `{"title":"  ","services":["s1"]}`, wantStatus: http.StatusBadRequest},
		{name: "no services", body: `{"title":"Outage","services":[]}`, wantStatus: http.StatusBadRequest},
		{name: "bad impact", body: `{"title":"Outage","impact":"huge","services":["s1"]}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `nope`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t)

			rec := doRequest(router, http.MethodPost, "/incidents", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_CreateIncident_SetsCreator(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/incidents", `{"title":"Outage","impact":"critical","services":["s1"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	inc := decodeIncident(t, rec)
	assert.Equal(t, "user-1", inc.CreatedBy)
	assert.Equal(t, domain.ImpactCritical, inc.Impact)
}

func TestHandler_PostUpdate(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)
	path := "/incidents/" + created.ID + "/updates"

	rec := doRequest(router, http.MethodPost, path, `{"text":"  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeIncident(t, rec).Updates, 1)

	rec = doRequest(router, http.MethodPost, path, `{"text":"Rolled back","status":"monitoring"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	inc := decodeIncident(t, rec)
	assert.Len(t, inc.Updates, 2)
	assert.Equal(t, domain.IncidentStatusMonitoring, inc.Status)

	rec = doRequest(router, http.MethodPost, path, `{"text":"x","status":"sleeping"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/incidents/"+uuid.NewString()+"/updates", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Resolve_Idempotent(t *testing.T) {
	router, svc := newTestRouter(t)
	created, err := svc.Create(context.Background(), validInput(), "")
	require.NoError(t, err)
	path := "/incidents/" + created.ID + "/resolve"

	first := doRequest(router, http.MethodPost, path, "")
	second := doRequest(router, http.MethodPost, path, "")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	a, b := decodeIncident(t, first), decodeIncident(t, second)
	assert.Len(t, b.Updates, 2)
	require.NotNil(t, a.ResolvedAt)
	assert.True(t, a.ResolvedAt.Equal(*b.ResolvedAt))
}

func TestHandler_GetIncident_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/incidents/not-a-uuid", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "incident not found")
}

func TestHandler_ListIncidents_QueryValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusOK},
		{query: "?state=active", wantStatus: http.StatusOK},
		{query: "?state=open", wantStatus: http.StatusBadRequest},
		{query: "?limit=0", wantStatus: http.StatusBadRequest},
		{query: "?limit=10&offset=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doRequest(router, http.MethodGet, "/incidents"+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
