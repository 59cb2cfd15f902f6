package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// handlePerf serves the timing snapshot for ?window= (default 1h).
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.Collector == nil {
		http.Error(w, "perf collection is disabled", http.StatusServiceUnavailable)
		return
	}
	window := time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration such as 15m", http.StatusBadRequest)
			return
		}
		window = d
	}
	writeJSON(w, http.StatusOK, s.Collector.Snapshot(time.Now().Add(-window), 10))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Health(ctx); err != nil {
			slog.Warn("health_check_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
