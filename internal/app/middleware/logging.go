package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/logger"
	"github.com/corral-proxy/corral/internal/util"
	"github.com/corral-proxy/corral/pkg/format"
)

// operational paths are logged at INFO, everything else is proxied traffic
// which the proxy handler logs itself
var operationalPrefixes = []string{
	"/internal/",
	"/monitor/",
	constants.DefaultVersionEndpoint,
	constants.DefaultMetricsEndpoint,
}

func IsProxyRequest(path string) bool {
	for _, prefix := range operationalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// responseWriter captures status and size for the completion log line
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += int64(size)
	return size, err
}

func (rw *responseWriter) WriteHeader(s int) {
	rw.status = s
	rw.ResponseWriter.WriteHeader(s)
}

// Flush must reach the real writer or SSE chunks sit in a buffer until the
// stream ends
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GetLogger returns the request scoped logger, or the default one outside a request
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(constants.ContextLoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(constants.ContextRequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// EnhancedLoggingMiddleware assigns the request id, stamps it on the response
// and logs the start and end of every request
func EnhancedLoggingMiddleware(styledLogger logger.StyledLogger) func(http.Handler) http.Handler {
	base := styledLogger.GetUnderlying()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := util.RequestIDFrom(r)
			requestSize := max(r.ContentLength, 0)

			requestLogger := base.With(string(constants.ContextRequestIDKey), requestID)
			ctx := context.WithValue(r.Context(), constants.ContextRequestIDKey, requestID)
			ctx = context.WithValue(ctx, constants.ContextLoggerKey, requestLogger)
			ctx = context.WithValue(ctx, constants.ContextRequestTimeKey, start)

			w.Header().Set(constants.HeaderCorralRequestID, requestID)
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			proxied := IsProxyRequest(r.URL.Path)
			level := slog.LevelInfo
			if proxied {
				level = slog.LevelDebug
			}

			requestLogger.Log(ctx, level, "Request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"request_bytes", requestSize,
				"request_size_formatted", format.Bytes(uint64(requestSize)))

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			requestLogger.Log(ctx, level, "Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", duration.Milliseconds(),
				"request_bytes", requestSize,
				"response_bytes", wrapped.size,
				"size_flow", format.Bytes(uint64(requestSize))+" -> "+format.Bytes(uint64(wrapped.size)))
		})
	}
}

// AccessLoggingMiddleware writes one detailed line per request, only to the log file
func AccessLoggingMiddleware(styledLogger logger.StyledLogger) func(http.Handler) http.Handler {
	base := styledLogger.GetUnderlying()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := GetRequestID(r.Context())
			if requestID == "" {
				requestID = util.RequestIDFrom(r)
				r = r.WithContext(context.WithValue(r.Context(), constants.ContextRequestIDKey, requestID))
			}

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			detailedCtx := context.WithValue(r.Context(), logger.DefaultDetailedCookie, true)
			base.InfoContext(detailedCtx, "Access log",
				"timestamp", start.Format(time.RFC3339),
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", wrapped.status,
				"request_bytes", max(r.ContentLength, 0),
				"response_bytes", wrapped.size,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
				"content_type", r.Header.Get(constants.ContentTypeHeader),
				"local_only", r.Header.Get(constants.HeaderLocalOnly))
		})
	}
}
