package relay

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealthz answers 200 while Redis answers PING and the repository
// (when it can be pinged) is reachable, 503 otherwise.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := s.rdb.Ping(ctx).Err()
	if err == nil {
		if p, ok := s.repo.(interface{ Ping(context.Context) error }); ok {
			err = p.Ping(ctx)
		}
	}

	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
