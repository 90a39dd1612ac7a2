package httputil

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrInvalidJSON is returned by Bind for bodies that do not decode.
var ErrInvalidJSON = errors.New("invalid json")

// Bind decodes the JSON body of r into dst and, when validate is not nil,
// checks its struct tags. On failure it writes a 400 and returns false.
func Bind(w http.ResponseWriter, r *http.Request, dst any, validate *validator.Validate) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, ErrInvalidJSON.Error())
		return false
	}
	if validate == nil {
		return true
	}
	if err := validate.Struct(dst); err != nil {
		ValidationError(w, err)
		return false
	}
	return true
}
