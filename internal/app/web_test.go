//go:build integration

package app_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/bissquit/statuspage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t    *testing.T
	http *http.Client
}

func newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t: t,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.http.Get(testServer.URL + path)
	require.NoError(b.t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) csrf() string {
	u, err := url.Parse(testServer.URL)
	require.NoError(b.t, err)
	for _, c := range b.http.Jar.Cookies(u) {
		if c.Name == httputil.CSRFTokenCookie {
			return c.Value
		}
	}
	return ""
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	form.Set("csrf_token", b.csrf())
	resp, err := b.http.Post(testServer.URL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	_ = resp.Body.Close()
	return resp
}

func TestWeb_DashboardRequiresSession(t *testing.T) {
	b := newBrowser(t)

	for _, path := range []string{"/dashboard", "/dashboard/incidents", "/dashboard/incidents/new"} {
		resp, _ := b.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestWeb_PublicPages(t *testing.T) {
	b := newBrowser(t)

	resp, body := b.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<html")

	resp, _ = b.get("/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, b.csrf())

	resp, _ = b.get("/register")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWeb_LoginAndManageIncident(t *testing.T) {
	api := newTestClient(t)
	email := api.RegisterAndLogin(t)
	svc := createService(t, api, uniqueName("Portal"), "")

	b := newBrowser(t)
	b.get("/login")

	resp := b.post("/login", url.Values{"email": {email}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = b.post("/login", url.Values{"email": {email}, "password": {"operator-pass"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, body := b.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, svc.Name)

	resp = b.post("/dashboard/incidents", url.Values{"title": {""}, "services": {svc.ID}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = b.post("/dashboard/incidents", url.Values{
		"title":       {"Portal login loops"},
		"description": {"Users bounce back to the login page"},
		"impact":      {"minor"},
		"status":      {"investigating"},
		"services":    {svc.ID},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/dashboard/incidents/"), location)

	resp, body = b.get(location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Incident identified: Users bounce back to the login page")
	assert.Contains(t, body, "Incident created.")

	resp = b.post(location+"/resolve", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	id := strings.TrimPrefix(location, "/dashboard/incidents/")
	assert.Equal(t, "resolved", getIncident(t, api, id).Status)
}

func TestWeb_UnknownIncident(t *testing.T) {
	api := newTestClient(t)
	email := api.RegisterAndLogin(t)

	b := newBrowser(t)
	b.get("/login")
	resp := b.post("/login", url.Values{"email": {email}, "password": {"operator-pass"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := b.get("/dashboard/incidents/00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Back to Incidents")
	assert.Contains(t, body, `href="/dashboard/incidents"`)
}

func TestWeb_RegisterSignsIn(t *testing.T) {
	b := newBrowser(t)
	b.get("/register")

	resp := b.post("/register", url.Values{
		"email":            {testutil.RandomEmail("browser")},
		"password":         {"browser-pass"},
		"password_confirm": {"browser-pass"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.post("/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}
