package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealth reports process liveness. Always 200 while the process runs.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the server can do useful work, which requires
// a reachable database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
