package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vitalvas/httpdigest/digest"
	"github.com/vitalvas/httpdigest/internal/httpmw"
)

// server is a reverse proxy that checks or computes the Digest header of
// inbound requests and signs requests forwarded to the upstream.
type server struct {
	cfg     Config
	logger  log.FieldLogger
	signer  *digest.Signer
	stage   *digest.Middleware
	handler http.Handler
}

func newServer(cfg Config, logger log.FieldLogger) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	registry := cfg.Registry()

	algs, err := cfg.DigestAlgorithms()
	if err != nil {
		return nil, err
	}

	signer, err := digest.NewSigner(nil, digest.SignerConfig{
		Algorithms: algs,
		Overwrite:  cfg.Overwrite,
		QueueSize:  cfg.QueueSize,
		Registry:   registry,
	})
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:    cfg,
		logger: logger,
		signer: signer,
	}

	mwCfg := digest.MiddlewareConfig{
		Algorithms: algs,
		Overwrite:  cfg.Overwrite,
		QueueSize:  cfg.QueueSize,
		Registry:   registry,
		OnError:    s.onDigestError,
	}

	if cfg.Mode == modeSign {
		s.stage, err = digest.SignMiddleware(mwCfg)
	} else {
		s.stage, err = digest.VerifyMiddleware(mwCfg)
	}

	if err != nil {
		signer.Close()
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.Transport = signer
	proxy.ErrorHandler = s.onProxyError

	router := mux.NewRouter()
	router.Use(
		httpmw.RequestIDMiddleware(httpmw.RequestIDConfig{Logger: logger}),
		httpmw.AccessLogMiddleware(httpmw.AccessLogConfig{Logger: logger}),
		httpmw.RecoveryMiddleware(httpmw.RecoveryConfig{Logger: logger}),
	)
	router.Handle(cfg.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	proxyRoutes := router.PathPrefix("/").Subrouter()
	if cfg.MaxBodyBytes > 0 {
		limit, err := httpmw.BodyLimitMiddleware(httpmw.BodyLimitConfig{MaxBytes: cfg.MaxBodyBytes})
		if err != nil {
			s.Close()
			return nil, err
		}

		proxyRoutes.Use(limit)
	}
	proxyRoutes.Use(s.stage.Func())
	proxyRoutes.PathPrefix("/").Handler(s.forwarded(proxy))

	s.handler = router

	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the inbound digest stage and the upstream signer.
func (s *server) Close() {
	s.stage.Close()
	s.signer.Close()
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", s.cfg.Listen).Info("listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down")

		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()

	return err
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	for _, ready := range []func() error{s.stage.Ready, s.signer.Ready} {
		if err := ready(); err != nil && !errors.Is(err, digest.ErrGuardFull) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *server) forwarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsTotal.WithLabelValues(s.cfg.Mode, outcome(nil)).Inc()
		next.ServeHTTP(w, r)
	})
}

func (s *server) onDigestError(w http.ResponseWriter, r *http.Request, err error) {
	requestsTotal.WithLabelValues(s.cfg.Mode, outcome(err)).Inc()

	code := digest.StatusCode(err)
	httpmw.LoggerFromContext(r.Context(), s.logger).
		WithError(err).
		WithField("status", code).
		Warn("digest check failed")

	http.Error(w, http.StatusText(code), code)
}

func (s *server) onProxyError(w http.ResponseWriter, r *http.Request, err error) {
	upstreamErrorsTotal.Inc()

	code := digest.StatusCode(err)
	httpmw.LoggerFromContext(r.Context(), s.logger).
		WithError(err).
		WithField("status", code).
		Error("forwarding failed")

	w.WriteHeader(code)
}
