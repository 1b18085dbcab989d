package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware returns a middleware that attaches a request scoped logger to
// the context and logs every completed request.
//
// Requests to quietPaths, such as health probes and metrics scrapes, are
// logged at debug level. Client errors are logged as warnings and server
// errors as errors.
func Middleware(logger *Logger, quietPaths ...string) func(http.Handler) http.Handler {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			requestLogger := logger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
			})
			ctx := (&CtxLogger{requestLogger}).WithContext(r.Context())

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			fields := map[string]interface{}{
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
				"user_agent": r.UserAgent(),
			}
			if status >= http.StatusBadRequest {
				fields["error"] = http.StatusText(status)
			}

			completed := requestLogger.WithFields(fields)
			switch {
			case status >= http.StatusInternalServerError:
				completed.Error("Request completed")
			case status >= http.StatusBadRequest:
				completed.Warn("Request completed")
			case quiet[r.URL.Path]:
				completed.Debug("Request completed")
			default:
				completed.Info("Request completed")
			}
		})
	}
}
