package httpmw

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// Logger receives the recovered value when the request carries no
	// request-scoped logger. Defaults to the logrus standard logger.
	Logger log.FieldLogger
}

// RecoveryMiddleware turns a panic in a downstream handler into 500
// Internal Server Error and logs the recovered value. http.ErrAbortHandler
// is re-raised.
func RecoveryMiddleware(cfg RecoveryConfig) mux.MiddlewareFunc {
	logger := loggerOrStandard(cfg.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}

				if v == http.ErrAbortHandler {
					panic(v)
				}

				LoggerFromContext(r.Context(), logger).
					WithField("panic", v).
					Error("handler panicked")

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
