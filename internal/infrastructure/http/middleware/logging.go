package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
)

// CorrelationHeader carries the correlation id in and out of the service.
const CorrelationHeader = "X-Correlation-ID"

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// RequestLogger logs every request and stores the correlation id in the
// request context. A caller-supplied X-Correlation-ID wins over the chi
// request id, and the chosen id is echoed on the response.
// Log levels follow the status code: Info for 2xx/3xx, Warn for 4xx, Error for 5xx.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimw.GetReqID(r.Context())
			correlationID := strings.TrimSpace(r.Header.Get(CorrelationHeader))
			if correlationID == "" {
				correlationID = requestID
			}
			ctx := ctxutil.WithCorrelationID(r.Context(), correlationID)
			if correlationID != "" {
				w.Header().Set(CorrelationHeader, correlationID)
			}

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / 1e6

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", durationMs,
				"bytes", rw.bytesWritten,
			}
			if correlationID != "" {
				attrs = append(attrs, "correlation_id", correlationID)
			}
			if requestID != "" && requestID != correlationID {
				attrs = append(attrs, "request_id", requestID)
			}
			if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
				attrs = append(attrs, "user_agent", userAgent)
			}

			switch {
			case rw.statusCode >= 500:
				log.Error("HTTP request", attrs...)
			case rw.statusCode >= 400:
				log.Warn("HTTP request", attrs...)
			default:
				log.Info("HTTP request", attrs...)
			}
		})
	}
}
