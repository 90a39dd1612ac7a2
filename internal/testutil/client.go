// Package testutil provides helpers for the integration tests: a postgres
// container, an API client and an OpenAPI response validator.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Client calls the JSON API with a cookie session, the way the browser
// front does. CSRF headers are added to writes once signed in.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	CSRFToken  string

	validator *OpenAPIValidator
	t         *testing.T
}

// NewClient creates a client that does not validate responses.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Jar: jar}}
}

// NewClientWithValidator creates a client that checks every API response
// against the OpenAPI document. Call SetT before use.
func NewClientWithValidator(baseURL string, validator *OpenAPIValidator) *Client {
	c := NewClient(baseURL)
	c.validator = validator
	return c
}

// SetT directs validation failures to t.
func (c *Client) SetT(t *testing.T) {
	c.t = t
}

// RandomEmail returns an address that is unique within a test run.
func RandomEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

// LoginAs signs in and keeps the session cookies and CSRF token.
func (c *Client) LoginAs(t *testing.T, email, password string) {
	t.Helper()
	c.t = t

	resp, err := c.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("login failed: status=%d body=%s", resp.StatusCode, body)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == httputil.CSRFTokenCookie {
			c.CSRFToken = cookie.Value
		}
	}
}

// RegisterAndLogin creates a fresh account and signs the client in with it.
// It returns the account email; the password is always "operator-pass".
func (c *Client) RegisterAndLogin(t *testing.T) string {
	t.Helper()
	c.t = t

	email := RandomEmail("operator")
	const password = "operator-pass"

	resp, err := c.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status=%d body=%s", resp.StatusCode, body)
	}

	c.LoginAs(t, email, password)
	return email
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do(http.MethodGet, path, nil)
}

// POST sends body as JSON. A nil body sends no payload.
func (c *Client) POST(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPost, path, body)
}

// PATCH sends body as JSON.
func (c *Client) PATCH(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPatch, path, body)
}

// DELETE performs a DELETE request.
func (c *Client) DELETE(path string) (*http.Response, error) {
	return c.do(http.MethodDelete, path, nil)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.CSRFToken != "" && httputil.IsStateChanging(method) {
		req.Header.Set(httputil.CSRFTokenHeader, c.CSRFToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if c.validator != nil && c.t != nil {
		c.validator.ValidateResponse(c.t, req, resp)
	}
	return resp, nil
}

// DecodeJSON decodes and closes the response body.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
