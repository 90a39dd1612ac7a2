// Package identity provides user registration, login and session tokens.
package identity

import (
	"net/http"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Handler serves the /auth endpoints and /me.
type Handler struct {
	service  *Service
	validate *validator.Validate
	cookies  CookieSettings
}

// NewHandler returns a Handler that issues cookies per cookies.
func NewHandler(service *Service, cookies CookieSettings) *Handler {
	return &Handler{service: service, validate: validator.New(), cookies: cookies}
}

// RegisterRoutes mounts the unauthenticated /auth endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})
}

// RegisterProtectedRoutes mounts endpoints that need a signed-in user.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned by a successful login. Tokens travel in cookies.
type LoginResponse struct {
	User      *domain.User `json:"user"`
	ExpiresIn int          `json:"expires_in"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
	{Error: ErrEmailRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidEmail, Status: http.StatusBadRequest},
	{Error: ErrPasswordTooShort, Status: http.StatusBadRequest},
}

// Register handles POST /auth/register. The password length rule lives in
// the service so the browser form gets the same check.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.Bind(w, r, &req, h.validate) {
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput{Email: req.Email, Password: req.Password})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.Bind(w, r, &req, h.validate) {
		return
	}

	user, tokens, err := h.service.Login(r.Context(), LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.cookies.SetAuthCookies(w, tokens)
	httputil.Success(w, http.StatusOK, LoginResponse{User: user, ExpiresIn: tokens.ExpiresIn})
}

// Refresh handles POST /auth/refresh and rotates both tokens.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshToken(r)
	if token == "" {
		httputil.Error(w, http.StatusBadRequest, "missing refresh token")
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), token)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	h.cookies.SetAuthCookies(w, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /auth/logout. Cookies are cleared even when the
// refresh token is already gone.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := refreshToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			ctxlog.FromContext(r.Context()).Warn("failed to revoke refresh token", "error", err)
		}
	}

	h.cookies.ClearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := httputil.GetUserID(r.Context())
	if id == "" {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// refreshToken prefers the cookie; API clients may send
// {"refresh_token": "..."} instead.
func refreshToken(r *http.Request) string {
	if c, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	return body.RefreshToken
}
