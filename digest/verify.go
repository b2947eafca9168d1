package digest

import (
	"context"
	"fmt"
	"net/http"
)

type expectedDigest struct {
	alg   Algorithm
	value string
}

// VerifyRequest checks the Digest header of r against its body.
//
// The header is parsed and every algorithm resolved against registry (nil
// means DefaultRegistry) before the body is read, so a request without a
// Digest header fails with ErrMissingHeader without buffering anything.
// Entries are then compared in header order and the first mismatch is
// returned as a *HashMismatchError; later entries are not evaluated.
//
// On success the body has been replaced with a replayable reader.
func VerifyRequest(ctx context.Context, r *http.Request, registry *Registry) error {
	registry = registryOrDefault(registry)

	header, ok := headerValue(r.Header)
	if !ok {
		return ErrMissingHeader
	}

	if !validHeaderValue(header) {
		return ErrInvalidDigest
	}

	entries, err := ParseHeader(header)
	if err != nil {
		return err
	}

	expected := make([]expectedDigest, 0, len(entries))

	for _, e := range entries {
		alg, ok := registry.Resolve(e.Name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnsupportedDigest, e.Name)
		}

		expected = append(expected, expectedDigest{alg: alg, value: e.Value})
	}

	body, err := Materialize(ctx, r)
	if err != nil {
		return err
	}

	for _, exp := range expected {
		h, err := exp.alg.Hash(body)
		if err != nil {
			return err
		}

		if got := h.Encode(); got != exp.value {
			return &HashMismatchError{Algorithm: exp.alg, Expected: exp.value, Got: got}
		}
	}

	return nil
}
