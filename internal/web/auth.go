package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bissquit/statuspage/internal/identity"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
)

const (
	dashboardPath = "/dashboard"
	expiredForm   = "Your form expired. Please try again."
)

// credentialsForm keeps the submitted email so a failed attempt does not
// clear it.
type credentialsForm struct {
	Email string
}

// LoginForm handles GET /login.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.currentUserID(r) != "" {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", pageData{Title: "Sign in", Data: credentialsForm{}})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	form := credentialsForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	password := r.PostFormValue("password")

	if !httputil.ValidCSRF(r) {
		h.render(w, r, http.StatusForbidden, "login", pageData{Title: "Sign in", Error: expiredForm, Data: form})
		return
	}
	if form.Email == "" || password == "" {
		h.render(w, r, http.StatusBadRequest, "login", pageData{
			Title: "Sign in",
			Error: "Email and password are required.",
			Data:  form,
		})
		return
	}

	_, tokens, err := h.accounts.Login(r.Context(), identity.LoginInput{Email: form.Email, Password: password})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.render(w, r, http.StatusUnauthorized, "login", pageData{
				Title: "Sign in",
				Error: "Invalid email or password.",
				Data:  form,
			})
			return
		}
		ctxlog.FromContext(r.Context()).Error("login failed", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "login", pageData{
			Title: "Sign in",
			Flash: h.backendFlash(),
			Data:  form,
		})
		return
	}

	h.config.Cookies.SetAuthCookies(w, tokens)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// RegisterForm handles GET /register.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if h.currentUserID(r) != "" {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "register", pageData{Title: "Create account", Data: credentialsForm{}})
}

// Register handles POST /register. A new account is signed in right away.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form := credentialsForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	password := r.PostFormValue("password")

	invalid := func(status int, message string) {
		h.render(w, r, status, "register", pageData{Title: "Create account", Error: message, Data: form})
	}

	if !httputil.ValidCSRF(r) {
		invalid(http.StatusForbidden, expiredForm)
		return
	}
	if password != r.PostFormValue("password_confirm") {
		invalid(http.StatusBadRequest, "Passwords do not match.")
		return
	}

	_, err := h.accounts.Register(ctx, identity.RegisterInput{Email: form.Email, Password: password})
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrEmailRequired),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrPasswordTooShort):
		invalid(http.StatusBadRequest, sentence(err))
		return
	case errors.Is(err, identity.ErrEmailExists):
		invalid(http.StatusConflict, "An account with this email already exists.")
		return
	default:
		ctxlog.FromContext(ctx).Error("registration failed", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "register", pageData{
			Title: "Create account",
			Flash: h.backendFlash(),
			Data:  form,
		})
		return
	}

	_, tokens, err := h.accounts.Login(ctx, identity.LoginInput{Email: form.Email, Password: password})
	if err != nil {
		ctxlog.FromContext(ctx).Error("login after registration failed", slog.Any("error", err))
		h.setFlash(w, FlashSuccess, "Account created. Please sign in.")
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	h.config.Cookies.SetAuthCookies(w, tokens)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if !httputil.ValidCSRF(r) {
		h.renderError(w, r, http.StatusForbidden, "Your session form expired. Reload the page and try again.")
		return
	}

	if cookie, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && cookie.Value != "" {
		if err := h.accounts.Logout(r.Context(), cookie.Value); err != nil {
			ctxlog.FromContext(r.Context()).Warn("logout failed", slog.Any("error", err))
		}
	}

	h.config.Cookies.ClearAuthCookies(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// sentence turns a sentinel error message into a display sentence.
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
