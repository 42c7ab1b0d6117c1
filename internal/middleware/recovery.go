package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/stepflow/orchestrator/internal/logging"
)

// Recovery recovers from panics in downstream handlers, logs the stack
// trace, and returns an INTERNAL error response instead of crashing the
// process.
func Recovery(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					logger.WithContext(r.Context()).WithFields(map[string]interface{}{
						"panic":       fmt.Sprintf("%v", rec),
						"stack":       string(stack),
						"path":        r.URL.Path,
						"method":      r.Method,
						"remote_addr": r.RemoteAddr,
					}).Error("panic recovered")

					writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
