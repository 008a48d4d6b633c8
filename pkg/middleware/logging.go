package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"supportdesk/pkg/logging"
)

// RequestLogger creates a middleware that logs requests and injects the logger.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// child logger with request details
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			reqLog := log.With(
				logging.RequestID(reqID),
				slog.String("method", r.Method),
				slog.String("path", redactCredential(r.URL.Path)),
				slog.String("remote_addr", r.RemoteAddr),
			)
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				reqLog = reqLog.With(logging.TraceID(sc.TraceID().String()))
			}
			ctx := logging.WithContext(r.Context(), reqLog)
			reqLog.Debug("request started")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
