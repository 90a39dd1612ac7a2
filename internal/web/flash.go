package web

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const flashCookie = "flash"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
	// HideAfter is zero for messages that stay until the next navigation.
	HideAfter time.Duration
}

// setFlash stores a message for the page the client is redirected to. The
// cookie expires after the flash duration, so a message never outlives it.
func (h *Handler) setFlash(w http.ResponseWriter, kind, message string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(kind + "\n" + message))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.config.FlashDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message.
func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(string(raw), "\n")
	if !ok || message == "" {
		return nil
	}
	f := &Flash{Kind: kind, Message: message}
	if kind == FlashError {
		f.HideAfter = h.config.FlashDuration
	}
	return f
}

// backendFlash is the inline message for a failed backend call.
func (h *Handler) backendFlash() *Flash {
	return &Flash{
		Kind:      FlashError,
		Message:   "Something went wrong while talking to the server. Please try again.",
		HideAfter: h.config.FlashDuration,
	}
}
