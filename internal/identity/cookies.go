package identity

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/bissquit/statuspage/internal/pkg/httputil"
)

// CookieSettings contains settings for authentication cookies.
type CookieSettings struct {
	Secure               bool
	Domain               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// SetAuthCookies sets access_token, refresh_token and a fresh csrf_token cookie.
func (c CookieSettings) SetAuthCookies(w http.ResponseWriter, tokens *TokenPair) {
	c.SetSessionCookies(w, tokens, GenerateCSRFToken())
}

// SetSessionCookies sets the auth cookies with the given CSRF token.
func (c CookieSettings) SetSessionCookies(w http.ResponseWriter, tokens *TokenPair, csrfToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     httputil.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.AccessTokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     httputil.RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     "/", // the browser logout form lives outside /api
		Domain:   c.Domain,
		MaxAge:   int(c.RefreshTokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})

	// readable by JavaScript and echoed back by forms
	http.SetCookie(w, &http.Cookie{
		Name:     httputil.CSRFTokenCookie,
		Value:    csrfToken,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.RefreshTokenDuration.Seconds()),
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookies removes all auth cookies.
func (c CookieSettings) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{httputil.AccessTokenCookie, httputil.RefreshTokenCookie, httputil.CSRFTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.Domain,
			MaxAge:   -1,
			HttpOnly: name != httputil.CSRFTokenCookie,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// EnsureCSRFCookie sets a CSRF cookie when the request has none and returns
// the token in effect. Anonymous forms (login, register) use it.
func (c CookieSettings) EnsureCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(httputil.CSRFTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token := GenerateCSRFToken()
	http.SetCookie(w, &http.Cookie{
		Name:     httputil.CSRFTokenCookie,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// GenerateCSRFToken generates a random CSRF token.
func GenerateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
