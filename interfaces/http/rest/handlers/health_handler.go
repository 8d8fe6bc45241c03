package handlers

import (
	"net/http"

	"synergy-backend/application/ports"
	"synergy-backend/pkg/common"
)

// HealthHandler serves liveness and readiness. Neither does I/O; readiness is
// read from the connection health snapshot.
type HealthHandler struct {
	health ports.HealthReporter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(health ports.HealthReporter) *HealthHandler {
	return &HealthHandler{health: health}
}

// HealthResponse is returned by both probes
type HealthResponse struct {
	Status     string                  `json:"status"`
	Connection *ports.ConnectionHealth `json:"connection,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "healthy"}
	if h.health != nil {
		snapshot := h.health.Health()
		response.Connection = &snapshot
	}
	common.RespondJSON(w, r, http.StatusOK, response)
}

// Ready handles GET /ready. The service is ready once the store handle is
// connected and the circuit breaker is not open.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		common.RespondJSON(w, r, http.StatusOK, HealthResponse{Status: "ready"})
		return
	}

	snapshot := h.health.Health()
	if !snapshot.Connected || snapshot.BreakerState == "open" {
		common.RespondErrorWithDetails(w, r, http.StatusServiceUnavailable,
			common.StandardErrorCodes.ServiceUnavailable, "store is not reachable",
			map[string]interface{}{"connection": snapshot})
		return
	}
	common.RespondJSON(w, r, http.StatusOK, HealthResponse{Status: "ready", Connection: &snapshot})
}
