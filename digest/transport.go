package digest

import (
	"context"
	"fmt"
	"net/http"
)

// SignerConfig configures a Signer.
type SignerConfig struct {
	// Algorithms lists the digests written into the Digest header, in
	// header order. Must not be empty.
	Algorithms []Algorithm

	// Overwrite replaces a Digest header that is already present. When
	// false, an existing header is forwarded unchanged.
	Overwrite bool

	// QueueSize is the capacity of the guard queue in front of the wrapped
	// transport. Defaults to DefaultQueueSize.
	QueueSize int

	// Registry restricts Algorithms to an enabled set. Defaults to
	// DefaultRegistry.
	Registry *Registry
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// QueueSize is the capacity of the guard queue in front of the wrapped
	// transport. Defaults to DefaultQueueSize.
	QueueSize int

	// Registry resolves the algorithm names found in Digest headers.
	// Defaults to DefaultRegistry.
	Registry *Registry
}

// Signer is an http.RoundTripper that sets the Digest header of outgoing
// requests and forwards them to the wrapped transport one at a time.
type Signer struct {
	algorithms []Algorithm
	overwrite  bool
	guard      *Guard[*http.Request, *http.Response]
}

// NewSigner creates a Signer that delegates to base after signing each
// request. When base is nil, a clone of http.DefaultTransport is used.
//
// It returns ErrNoAlgorithms if cfg.Algorithms is empty,
// ErrUnsupportedDigest if an algorithm is not enabled in cfg.Registry and
// ErrInvalidQueueSize if cfg.QueueSize is negative.
func NewSigner(base http.RoundTripper, cfg SignerConfig) (*Signer, error) {
	if cfg.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}

	algs, err := checkAlgorithms(cfg.Registry, cfg.Algorithms)
	if err != nil {
		return nil, err
	}

	return &Signer{
		algorithms: algs,
		overwrite:  cfg.Overwrite,
		guard:      newTransportGuard(base, cfg.QueueSize),
	}, nil
}

// RoundTrip signs a clone of req and passes it to the wrapped transport. The
// caller's request is not modified. When GetBody is available the clone
// receives its own body copy.
func (s *Signer) RoundTrip(req *http.Request) (*http.Response, error) {
	clone, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}

	if err := SignRequest(clone.Context(), clone, s.algorithms, s.overwrite); err != nil {
		closeBody(clone)
		return nil, err
	}

	return forward(s.guard, clone)
}

// Ready reports whether the wrapped transport can accept a request without
// waiting. Failures wrap ErrInnerService.
func (s *Signer) Ready() error {
	return guardReady(s.guard)
}

// Close stops the guard. Subsequent round trips fail with ErrInnerService.
func (s *Signer) Close() {
	s.guard.Close()
}

// Verifier is an http.RoundTripper that checks the Digest header of requests
// against their body before forwarding them to the wrapped transport one at
// a time.
type Verifier struct {
	registry *Registry
	guard    *Guard[*http.Request, *http.Response]
}

// NewVerifier creates a Verifier that delegates to base after verifying each
// request. When base is nil, a clone of http.DefaultTransport is used.
//
// It returns ErrInvalidQueueSize if cfg.QueueSize is negative.
func NewVerifier(base http.RoundTripper, cfg VerifierConfig) (*Verifier, error) {
	if cfg.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}

	return &Verifier{
		registry: registryOrDefault(cfg.Registry),
		guard:    newTransportGuard(base, cfg.QueueSize),
	}, nil
}

// RoundTrip verifies a clone of req and passes it to the wrapped transport.
func (v *Verifier) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := headerValue(req.Header); !ok {
		closeBody(req)
		return nil, ErrMissingHeader
	}

	clone, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}

	if err := VerifyRequest(clone.Context(), clone, v.registry); err != nil {
		closeBody(clone)
		return nil, err
	}

	return forward(v.guard, clone)
}

// Ready reports whether the wrapped transport can accept a request without
// waiting. Failures wrap ErrInnerService.
func (v *Verifier) Ready() error {
	return guardReady(v.guard)
}

// Close stops the guard. Subsequent round trips fail with ErrInnerService.
func (v *Verifier) Close() {
	v.guard.Close()
}

func newTransportGuard(base http.RoundTripper, queueSize int) *Guard[*http.Request, *http.Response] {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return NewReleasingGuard(queueSize, func(_ context.Context, r *http.Request) (*http.Response, error) {
		return base.RoundTrip(r)
	}, closeResponse)
}

// closeResponse frees the connection of a response nobody reads.
func closeResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

func forward(g *Guard[*http.Request, *http.Response], r *http.Request) (*http.Response, error) {
	resp, err := g.Do(r.Context(), r)
	if err != nil {
		return nil, innerError(err)
	}

	return resp, nil
}

func guardReady[Req, Resp any](g *Guard[Req, Resp]) error {
	if err := g.Ready(); err != nil {
		return innerError(err)
	}

	return nil
}

// cloneRequest clones req for mutation. When GetBody is available the clone
// gets a fresh body and the original is closed, as a RoundTripper must.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())

	if req.Body != nil && req.Body != http.NoBody && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			closeBody(req)
			return nil, bodyError(err)
		}

		closeBody(req)
		clone.Body = body
	}

	return clone, nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

func checkAlgorithms(registry *Registry, algs []Algorithm) ([]Algorithm, error) {
	if len(algs) == 0 {
		return nil, ErrNoAlgorithms
	}

	registry = registryOrDefault(registry)

	for _, alg := range algs {
		if !registry.Enabled(alg) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, alg)
		}
	}

	return append([]Algorithm(nil), algs...), nil
}
