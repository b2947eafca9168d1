package digest

import (
	"context"
	"fmt"
	"net/http"
)

// SignRequest materializes the request body and sets the Digest header to
// one entry per algorithm, in the given order.
//
// When overwrite is false and the request already carries a Digest header
// the header is left untouched; the body is materialized either way so that
// downstream stages always receive a replayable body.
func SignRequest(ctx context.Context, r *http.Request, algs []Algorithm, overwrite bool) error {
	body, err := Materialize(ctx, r)
	if err != nil {
		return err
	}

	if _, ok := headerValue(r.Header); ok && !overwrite {
		return nil
	}

	value, err := ComputeHeader(body, algs)
	if err != nil {
		return err
	}

	r.Header.Set(HeaderName, value)

	return nil
}

// ComputeHeader hashes body with every algorithm and returns the Digest
// header value listing them in order.
func ComputeHeader(body []byte, algs []Algorithm) (string, error) {
	entries := make([]Entry, 0, len(algs))

	for _, alg := range algs {
		h, err := alg.Hash(body)
		if err != nil {
			return "", err
		}

		entries = append(entries, Entry{Name: alg.String(), Value: h.Encode()})
	}

	value := FormatHeader(entries)
	if !validHeaderValue(value) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHeaderValue, value)
	}

	return value, nil
}
