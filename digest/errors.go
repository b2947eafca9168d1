package digest

import (
	"errors"
	"fmt"
)

// Request errors.
var (
	// ErrBodyOperation is returned when reading the request body fails.
	// The underlying read error is wrapped alongside it.
	ErrBodyOperation = errors.New("digest: body operation failed")

	// ErrMissingHeader is returned when a request to be verified carries no
	// Digest header.
	ErrMissingHeader = errors.New("digest: missing digest header")

	// ErrInvalidDigest is returned when the Digest header value contains
	// bytes that are not valid in an HTTP header field.
	ErrInvalidDigest = errors.New("digest: invalid digest value")

	// ErrInvalidDigestHeader is returned when an entry of the Digest header
	// is not of the form name=value.
	ErrInvalidDigestHeader = errors.New("digest: invalid digest header")

	// ErrInvalidHeaderValue is returned when a computed Digest header value
	// cannot be represented as header text.
	ErrInvalidHeaderValue = errors.New("digest: invalid header value")

	// ErrUnsupportedDigest is returned for unknown or disabled digest
	// algorithms.
	ErrUnsupportedDigest = errors.New("digest: unsupported digest algorithm")

	// ErrHashMismatch is matched by every *HashMismatchError.
	ErrHashMismatch = errors.New("digest: hash mismatch")
)

// Stage errors.
var (
	// ErrInnerService wraps every failure reported by the downstream stage,
	// including failures of the guard in front of it.
	ErrInnerService = errors.New("digest: inner service failed")

	// ErrNoAlgorithms is returned when a signing stage is configured without
	// any digest algorithm.
	ErrNoAlgorithms = errors.New("digest: algorithms must not be empty")

	// ErrInvalidQueueSize is returned when a stage is configured with a
	// negative queue size.
	ErrInvalidQueueSize = errors.New("digest: queue size must not be negative")
)

// Guard errors.
var (
	// ErrGuardClosed is returned by a Guard after Close has been called.
	ErrGuardClosed = errors.New("digest: guard closed")

	// ErrGuardFull is reported by Guard.Ready while the queue is at capacity.
	ErrGuardFull = errors.New("digest: guard queue full")

	// ErrGuardPanic is returned when the guarded function panics.
	ErrGuardPanic = errors.New("digest: guarded call panicked")
)

// HashMismatchError reports the first Digest header entry whose value does
// not match the digest computed over the body.
type HashMismatchError struct {
	Algorithm Algorithm
	Expected  string
	Got       string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("digest: hash mismatch for %s: expected %q, got %q", e.Algorithm, e.Expected, e.Got)
}

// Is reports whether target is ErrHashMismatch.
func (e *HashMismatchError) Is(target error) bool {
	return target == ErrHashMismatch
}

func bodyError(err error) error {
	return fmt.Errorf("%w: %w", ErrBodyOperation, err)
}

func innerError(err error) error {
	return fmt.Errorf("%w: %w", ErrInnerService, err)
}
