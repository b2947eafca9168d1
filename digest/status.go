package digest

import (
	"context"
	"errors"
	"net/http"
)

// StatusClientClosedRequest is the non-standard status reported when the
// client went away before the request was handled.
const StatusClientClosedRequest = 499

// StatusCode maps an error returned by this package to an HTTP status code
// suitable for a response to the client.
func StatusCode(err error) int {
	var maxBytesErr *http.MaxBytesError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGuardClosed), errors.Is(err, ErrGuardFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInnerService):
		return http.StatusBadGateway
	case errors.Is(err, ErrMissingHeader),
		errors.Is(err, ErrInvalidDigest),
		errors.Is(err, ErrInvalidDigestHeader),
		errors.Is(err, ErrUnsupportedDigest),
		errors.Is(err, ErrHashMismatch),
		errors.Is(err, ErrBodyOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
