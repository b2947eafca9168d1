package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalvas/httpdigest/digest"
)

const prometheusMetricNamespace = "digestd"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "requests_total",
			Help:      "Requests handled by the digest stage, by outcome.",
		},
		[]string{"mode", "outcome"},
	)

	upstreamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "upstream_errors_total",
			Help:      "Forwarded requests that failed before the upstream responded.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(upstreamErrorsTotal)
}

// outcome returns the metric label for an error returned by the digest
// stage.
func outcome(err error) string {
	switch {
	case err == nil:
		return "forwarded"
	case errors.Is(err, digest.ErrMissingHeader):
		return "missing_header"
	case errors.Is(err, digest.ErrInvalidDigest), errors.Is(err, digest.ErrInvalidDigestHeader):
		return "invalid_header"
	case errors.Is(err, digest.ErrUnsupportedDigest):
		return "unsupported_digest"
	case errors.Is(err, digest.ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, digest.ErrBodyOperation):
		return "body_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, digest.ErrInnerService):
		return "inner_service"
	default:
		return "error"
	}
}
