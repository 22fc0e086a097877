package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const readinessTimeout = 2 * time.Second

// health is a simple health check endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can reach its database.
// With a nil pool it degrades to a liveness check.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}

		stats := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"total_conns":       stats.TotalConns(),
			"idle_conns":        stats.IdleConns(),
			"acquired_conns":    stats.AcquiredConns(),
			"max_conns":         stats.MaxConns(),
			"new_conns_count":   stats.NewConnsCount(),
			"acquire_count":     stats.AcquireCount(),
			"acquire_duration":  stats.AcquireDuration().String(),
			"canceled_acquires": stats.CanceledAcquireCount(),
		})
	})
}
