package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context and returns 504 if next does not
// complete within the given duration. When duration <= 0 it falls back
// to defaultRequestTimeout.
func Timeout(duration time.Duration) mux.MiddlewareFunc {
	if duration <= 0 {
		duration = defaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutResponseWriter{ResponseWriter: w}

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				wrote := tw.wroteHeader
				tw.mu.Unlock()
				if !wrote && ctx.Err() == context.DeadlineExceeded {
					writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", map[string]interface{}{
						"timeout_seconds": duration.Seconds(),
					})
				}
			}
		})
	}
}

type timeoutResponseWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
}

func (tw *timeoutResponseWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.ResponseWriter.WriteHeader(code)
	}
}

func (tw *timeoutResponseWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	if !tw.wroteHeader {
		tw.wroteHeader = true
	}
	tw.mu.Unlock()
	return tw.ResponseWriter.Write(b)
}
