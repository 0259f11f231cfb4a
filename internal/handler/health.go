package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// NewHealthHandler returns a handler that runs every check and responds
// 200 {"status":"ok"} or 503 listing the failed checks by name.
func NewHealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var failed []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", "check", name, "error", err)
				failed = append(failed, name)
			}
		}

		if len(failed) > 0 {
			slices.Sort(failed)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"failed": failed,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
