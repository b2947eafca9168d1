package digest

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// MiddlewareConfig configures the server-side digest middlewares.
type MiddlewareConfig struct {
	// Algorithms lists the digests written by SignMiddleware, in header
	// order. Ignored by VerifyMiddleware.
	Algorithms []Algorithm

	// Overwrite makes SignMiddleware replace a Digest header sent by the
	// client. Ignored by VerifyMiddleware.
	Overwrite bool

	// QueueSize is the capacity of the guard queue in front of the wrapped
	// handlers. Defaults to DefaultQueueSize.
	QueueSize int

	// Registry resolves and restricts algorithms. Defaults to
	// DefaultRegistry.
	Registry *Registry

	// OnError is called when signing or verification fails. When nil, the
	// status from StatusCode is sent with its status text.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

type handlerCall struct {
	next http.Handler
	w    http.ResponseWriter
	r    *http.Request
}

// Middleware is a server-side digest stage. Every handler it wraps shares
// one guard, so across all of them at most one request is served at a
// time. Register it with router.Use(m.Func()).
type Middleware struct {
	check   func(r *http.Request) error
	onError func(http.ResponseWriter, *http.Request, error)
	guard   *Guard[handlerCall, struct{}]
}

// VerifyMiddleware returns a Middleware that verifies the Digest header of
// incoming requests against their body. Requests that pass reach the
// wrapped handler with a replayable body.
//
// It returns ErrInvalidQueueSize if QueueSize is negative.
func VerifyMiddleware(cfg MiddlewareConfig) (*Middleware, error) {
	if cfg.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}

	registry := registryOrDefault(cfg.Registry)

	return newMiddleware(cfg, func(r *http.Request) error {
		return VerifyRequest(r.Context(), r, registry)
	}), nil
}

// SignMiddleware returns a Middleware that sets the Digest header of
// incoming requests before they reach the wrapped handler, for handlers that
// forward the request further.
//
// It returns ErrNoAlgorithms if Algorithms is empty, ErrUnsupportedDigest if
// an algorithm is not enabled in Registry and ErrInvalidQueueSize if
// QueueSize is negative.
func SignMiddleware(cfg MiddlewareConfig) (*Middleware, error) {
	if cfg.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}

	algs, err := checkAlgorithms(cfg.Registry, cfg.Algorithms)
	if err != nil {
		return nil, err
	}

	overwrite := cfg.Overwrite

	return newMiddleware(cfg, func(r *http.Request) error {
		return SignRequest(r.Context(), r, algs, overwrite)
	}), nil
}

func newMiddleware(cfg MiddlewareConfig, check func(*http.Request) error) *Middleware {
	return &Middleware{
		check:   check,
		onError: errorHandler(cfg.OnError),
		guard: NewGuard(cfg.QueueSize, func(_ context.Context, c handlerCall) (struct{}, error) {
			c.next.ServeHTTP(c.w, c.r)
			return struct{}{}, nil
		}),
	}
}

// Middleware wraps next. It has the mux.MiddlewareFunc signature; routers
// may call it once per request without creating new workers.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.check(r); err != nil {
			m.onError(w, r, err)
			return
		}

		// Waits for the handler even when the client goes away: the
		// ResponseWriter must not outlive ServeHTTP.
		_, err := m.guard.Do(context.WithoutCancel(r.Context()), handlerCall{next: next, w: w, r: r})
		if err != nil {
			m.onError(w, r, innerError(err))
		}
	})
}

// Func returns m.Middleware as a mux.MiddlewareFunc.
func (m *Middleware) Func() mux.MiddlewareFunc {
	return m.Middleware
}

// Ready reports whether a request would reach the handlers without waiting.
// Failures wrap ErrInnerService.
func (m *Middleware) Ready() error {
	return guardReady(m.guard)
}

// Close stops the guard. Subsequent requests fail with ErrInnerService and
// are answered with 503 Service Unavailable by the default error handler.
func (m *Middleware) Close() {
	m.guard.Close()
}

func errorHandler(fn func(http.ResponseWriter, *http.Request, error)) func(http.ResponseWriter, *http.Request, error) {
	if fn != nil {
		return fn
	}

	return defaultOnError
}

// defaultOnError writes the status from StatusCode with its status text.
func defaultOnError(w http.ResponseWriter, _ *http.Request, err error) {
	code := StatusCode(err)
	http.Error(w, http.StatusText(code), code)
}
