package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestLoggingMiddleware logs HTTP requests with timing and status information.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// Handler returns middleware that logs all HTTP requests.
//
// The user ID is read after the handler returns, so it is logged whenever
// auth middleware further down the chain attached one. Place this outermost.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		holder := &userHolder{}
		r = r.WithContext(withUserHolder(r.Context(), holder))

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", wrapped.written,
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if holder.set {
			attrs = append(attrs, "user_id", holder.id.String())
		}

		if wrapped.statusCode >= 500 {
			m.logger.Warn("request", attrs...)
		} else {
			m.logger.Info("request", attrs...)
		}
	})
}

// shouldSkip returns true for paths that should not be logged (too noisy).
func (m *RequestLoggingMiddleware) shouldSkip(path string) bool {
	skipPaths := []string{
		"/health",
		"/metrics",
	}

	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}

	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code. It
// forwards Flush so server-sent events still stream through it.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath removes sensitive query parameters from the path for logging.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	sensitiveParams := map[string]bool{
		"token":         true,
		"code":          true,
		"key":           true,
		"secret":        true,
		"password":      true,
		"api_key":       true,
		"apikey":        true,
		"access_token":  true,
		"refresh_token": true,
	}

	var safeParts []string
	for _, part := range strings.Split(rawQuery, "&") {
		name, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		if sensitiveParams[strings.ToLower(name)] {
			safeParts = append(safeParts, name+"=[REDACTED]")
		} else {
			safeParts = append(safeParts, part)
		}
	}

	if len(safeParts) == 0 {
		return path
	}

	return path + "?" + strings.Join(safeParts, "&")
}

// userHolder lets auth middleware running inside the logger report the
// authenticated user back out to it.
type userHolder struct {
	id  uuid.UUID
	set bool
}

type holderKey struct{}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// noteUser records id on the request's holder, if logging installed one.
func noteUser(ctx context.Context, id uuid.UUID) {
	if h, ok := ctx.Value(holderKey{}).(*userHolder); ok {
		h.id = id
		h.set = true
	}
}
