package httpmw

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// statusWriter records the response status.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// AccessLogConfig configures the Access Log middleware behaviour.
type AccessLogConfig struct {
	// Logger is used when the request carries no request-scoped logger.
	// Defaults to the logrus standard logger.
	Logger log.FieldLogger
}

// AccessLogMiddleware writes one debug line per request with its status and
// duration, through the request-scoped logger when RequestIDMiddleware runs
// first.
func AccessLogMiddleware(cfg AccessLogConfig) mux.MiddlewareFunc {
	logger := loggerOrStandard(cfg.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			LoggerFromContext(r.Context(), logger).WithFields(log.Fields{
				"status":   sw.status,
				"duration": time.Since(start),
			}).Debug("request handled")
		})
	}
}
