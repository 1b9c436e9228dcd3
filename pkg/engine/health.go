// Health probe handler for the GraphQL server.

package engine

import (
	"net/http"
	"time"

	"github.com/getmockd/crmmock/pkg/httputil"
)

// HealthResponse is the body returned by the health path.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// handleHealth answers the liveness probe. It reports 503 once the server
// has left the running state so load balancers drain it during shutdown.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.lifecycle.State()
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		State:     state.String(),
	}
	status := http.StatusOK
	if state != StateRunning {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
