package httputil

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Auth cookie and header names shared by the API and the web front.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	CSRFTokenCookie    = "csrf_token"
	CSRFTokenHeader    = "X-CSRF-Token"
	CSRFTokenFormField = "csrf_token"
)

// ErrNoToken is returned when a request carries no access token.
var ErrNoToken = errors.New("missing authorization")

// TokenFromRequest returns the access token from the Authorization header,
// falling back to the access token cookie.
func TokenFromRequest(r *http.Request) (token string, fromCookie bool, err error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", false, errors.New("invalid authorization header format")
		}
		return parts[1], false, nil
	}

	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true, nil
	}

	return "", false, ErrNoToken
}

// ValidCSRF reports whether the request echoes the CSRF cookie in the
// X-CSRF-Token header or the csrf_token form field.
func ValidCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFTokenCookie)
	if err != nil || cookie.Value == "" {
		return false
	}

	sent := r.Header.Get(CSRFTokenHeader)
	if sent == "" {
		sent = r.PostFormValue(CSRFTokenFormField)
	}
	if sent == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) == 1
}

// IsStateChanging returns true for HTTP methods that modify state.
func IsStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
