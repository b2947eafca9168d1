package httpmw

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// ErrInvalidLimit is returned when a body limit is not greater than zero.
var ErrInvalidLimit = errors.New("httpmw: body limit must be greater than zero")

// BodyLimitConfig configures the Body Limit middleware behaviour.
type BodyLimitConfig struct {
	// MaxBytes is the largest accepted request body. Must be greater than
	// zero.
	MaxBytes int64
}

// BodyLimitMiddleware wraps request bodies with http.MaxBytesReader. Reading
// past MaxBytes fails with *http.MaxBytesError, which the digest stage
// reports as 413 Request Entity Too Large.
//
// It returns ErrInvalidLimit if MaxBytes is not greater than zero.
func BodyLimitMiddleware(cfg BodyLimitConfig) (mux.MiddlewareFunc, error) {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		return nil, ErrInvalidLimit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}, nil
}
