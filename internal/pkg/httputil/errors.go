package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
)

// ErrorMapping ties a sentinel error to the status it is reported with.
type ErrorMapping struct {
	Error  error
	Status int
	// Message replaces err.Error() in the response when set.
	Message string
}

func matchError(err error, mappings []ErrorMapping) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}

// HandleError writes the response for err. Errors without a mapping are
// backend failures: they are logged and reported as a bare 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	m, ok := matchError(err, mappings)
	if !ok {
		ctxlog.FromContext(ctx).Error("internal error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	msg := m.Message
	if msg == "" {
		msg = err.Error()
	}
	Error(w, m.Status, msg)
}
