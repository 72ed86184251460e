package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness and the state of critical dependencies.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler running checks on every request.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// =============================================================================
// GET /health
// =============================================================================

// ServeHTTP returns 200 when every check passes and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	writeJSON(w, status, body)
}
