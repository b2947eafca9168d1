package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type (
	requestIDKey struct{}
	loggerKey    struct{}
)

// RequestIDFromContext returns the request ID stored by RequestIDMiddleware,
// or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// LoggerFromContext returns the request-scoped logger stored by
// RequestIDMiddleware,
// or fallback when there is none.
func LoggerFromContext(ctx context.Context, fallback log.FieldLogger) log.FieldLogger {
	if l, ok := ctx.Value(loggerKey{}).(log.FieldLogger); ok {
		return l
	}

	return fallback
}

// RequestIDConfig configures the Request ID middleware behaviour.
type RequestIDConfig struct {
	// Logger is the parent of the request-scoped logger. Defaults to the
	// logrus standard logger.
	Logger log.FieldLogger

	// HeaderName overrides the header carrying the request ID. Defaults to
	// RequestIDHeader.
	HeaderName string
}

// RequestIDMiddleware reuses the incoming request ID or generates a UUID v4,
// sets it on the request and the response and stores it in the request
// context together with a logger carrying request_id, method and path
// fields.
func RequestIDMiddleware(cfg RequestIDConfig) mux.MiddlewareFunc {
	logger := loggerOrStandard(cfg.Logger)

	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = RequestIDHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerName)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(headerName, id)
			}

			w.Header().Set(headerName, id)

			scoped := logger.WithFields(log.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			ctx = context.WithValue(ctx, loggerKey{}, log.FieldLogger(scoped))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggerOrStandard(l log.FieldLogger) log.FieldLogger {
	if l == nil {
		return log.StandardLogger()
	}

	return l
}
