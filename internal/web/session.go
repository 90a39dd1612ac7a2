package web

import (
	"log/slog"
	"net/http"

	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
)

const loginPath = "/login"

// requireSession redirects to the login page unless the request carries a
// valid session. An expired access token is renewed from the refresh token
// cookie. Form posts must echo the CSRF cookie.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, ok := h.authenticate(w, r)
		if !ok {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}

		if httputil.IsStateChanging(r.Method) && !httputil.ValidCSRF(r) {
			ctxlog.FromContext(ctx).Warn("rejected form post without csrf token", slog.String("path", r.URL.Path))
			h.renderError(w, r, http.StatusForbidden, "Your session form expired. Reload the page and try again.")
			return
		}

		next.ServeHTTP(w, r.WithContext(httputil.WithUserID(ctx, userID)))
	})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()

	if cookie, err := r.Cookie(httputil.AccessTokenCookie); err == nil && cookie.Value != "" {
		if userID, err := h.accounts.ValidateToken(ctx, cookie.Value); err == nil {
			return userID, true
		}
	}

	refresh, err := r.Cookie(httputil.RefreshTokenCookie)
	if err != nil || refresh.Value == "" {
		return "", false
	}

	tokens, err := h.accounts.RefreshTokens(ctx, refresh.Value)
	if err != nil {
		h.config.Cookies.ClearAuthCookies(w)
		return "", false
	}
	userID, err := h.accounts.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		return "", false
	}

	// keep the CSRF token so forms already on screen stay valid
	if csrf, err := r.Cookie(httputil.CSRFTokenCookie); err == nil && csrf.Value != "" {
		h.config.Cookies.SetSessionCookies(w, tokens, csrf.Value)
	} else {
		h.config.Cookies.SetAuthCookies(w, tokens)
	}
	return userID, true
}

// currentUserID returns the user of an optional session on public pages.
func (h *Handler) currentUserID(r *http.Request) string {
	cookie, err := r.Cookie(httputil.AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	userID, err := h.accounts.ValidateToken(r.Context(), cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}
