package api

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// healthResponse reports store reachability and the number of synchronous
// callers currently polling for a result.
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	ActivePolls int    `json:"active_polls"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    "ok",
		ActivePolls: s.coordinator.ActiveWaits(),
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("healthz database ping", "error", err)
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}
