package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/application/services"
	"synergy-backend/domain/core/entities"
	"synergy-backend/pkg/common"
	pkgerrors "synergy-backend/pkg/errors"
	"synergy-backend/pkg/utils"
)

// GraphService is the part of services.SynergyGraph served over HTTP
type GraphService interface {
	ProposeEdge(ctx context.Context, source, target string, score float64) (services.Decision, error)
	RemoveEdge(ctx context.Context, source, target string) error
	RemoveDomain(ctx context.Context, domain string) (int, error)
	Neighbors(domain string) []entities.SynergyEdge
	Domains() []string
	Stats() services.GraphStats
	Persist(ctx context.Context) (ports.FlushResult, error)
	Load(ctx context.Context) (int, error)
}

// SynergyHandler handles synergy graph HTTP requests
type SynergyHandler struct {
	graph  GraphService
	logger *zap.Logger
}

// NewSynergyHandler creates a new synergy handler
func NewSynergyHandler(graph GraphService, logger *zap.Logger) *SynergyHandler {
	return &SynergyHandler{
		graph:  graph,
		logger: logger,
	}
}

// ProposeEdgeRequest represents the request body for proposing an edge
type ProposeEdgeRequest struct {
	Source string   `json:"source" validate:"required"`
	Target string   `json:"target" validate:"required"`
	Score  *float64 `json:"score" validate:"required"`
}

// NeighborsResponse lists the outgoing edges of a domain
type NeighborsResponse struct {
	Domain    string                 `json:"domain"`
	Neighbors []entities.SynergyEdge `json:"neighbors"`
}

// RemoveDomainResponse reports how many edges went with the domain
type RemoveDomainResponse struct {
	Domain       string `json:"domain"`
	EdgesRemoved int    `json:"edges_removed"`
}

// FlushResponse is the JSON form of ports.FlushResult
type FlushResponse struct {
	FlushID    string   `json:"flush_id,omitempty"`
	Groups     int      `json:"groups"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Pending    int      `json:"pending"`
	DurationMS int64    `json:"duration_ms"`
	Errors     []string `json:"errors,omitempty"`
}

// ProposeEdge handles POST /edges. Rejections are ordinary results and return 200.
func (h *SynergyHandler) ProposeEdge(w http.ResponseWriter, r *http.Request) {
	var req ProposeEdgeRequest
	if err := common.ParseJSONBody(w, r, &req, common.DefaultMaxBodyBytes); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, r, http.StatusBadRequest, common.StandardErrorCodes.ValidationError, err.Error())
		return
	}

	decision, err := h.graph.ProposeEdge(r.Context(), req.Source, req.Target, *req.Score)
	if err != nil {
		h.respondFailure(w, r, "Failed to propose edge", err,
			zap.String("source", req.Source),
			zap.String("target", req.Target))
		return
	}

	common.RespondJSON(w, r, http.StatusOK, decision)
}

// RemoveEdge handles DELETE /domains/{domainID}/edges/{targetID}
func (h *SynergyHandler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "domainID")
	target := chi.URLParam(r, "targetID")

	if err := h.graph.RemoveEdge(r.Context(), source, target); err != nil {
		h.respondFailure(w, r, "Failed to remove edge", err,
			zap.String("source", source),
			zap.String("target", target))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveDomain handles DELETE /domains/{domainID}
func (h *SynergyHandler) RemoveDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domainID")

	removed, err := h.graph.RemoveDomain(r.Context(), domain)
	if err != nil {
		h.respondFailure(w, r, "Failed to remove domain", err, zap.String("domain", domain))
		return
	}

	common.RespondJSON(w, r, http.StatusOK, RemoveDomainResponse{Domain: domain, EdgesRemoved: removed})
}

// GetNeighbors handles GET /domains/{domainID}/neighbors
func (h *SynergyHandler) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domainID")
	common.RespondJSON(w, r, http.StatusOK, NeighborsResponse{
		Domain:    domain,
		Neighbors: h.graph.Neighbors(domain),
	})
}

// ListDomains handles GET /domains
func (h *SynergyHandler) ListDomains(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"domains": h.graph.Domains(),
	})
}

// GetStats handles GET /stats
func (h *SynergyHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, h.graph.Stats())
}

// Persist handles POST /persist. Partial failures return 503 with the flush
// summary; failed mutations stay queued.
func (h *SynergyHandler) Persist(w http.ResponseWriter, r *http.Request) {
	result, err := h.graph.Persist(r.Context())
	response := toFlushResponse(result)
	if err != nil {
		h.logger.Error("Persist failed",
			zap.String("flushID", result.FlushID),
			zap.Int("failed", result.Failed),
			zap.Error(err))
		common.RespondErrorWithDetails(w, r, http.StatusServiceUnavailable,
			common.StandardErrorCodes.ServiceUnavailable,
			"Some mutations could not be persisted",
			map[string]interface{}{"flush": response})
		return
	}

	common.RespondJSON(w, r, http.StatusOK, response)
}

// Hydrate handles POST /hydrate
func (h *SynergyHandler) Hydrate(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.graph.Load(r.Context())
	if err != nil {
		h.respondFailure(w, r, "Failed to hydrate graph", err)
		return
	}

	common.RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"loaded": loaded,
		"stats":  h.graph.Stats(),
	})
}

func (h *SynergyHandler) respondFailure(w http.ResponseWriter, r *http.Request, message string, err error, fields ...zap.Field) {
	if pkgerrors.IsValidation(err) {
		h.logger.Debug(message, append(fields, zap.Error(err))...)
	} else {
		h.logger.Error(message, append(fields, zap.Error(err))...)
	}
	common.RespondAppError(w, r, err)
}

func toFlushResponse(result ports.FlushResult) FlushResponse {
	response := FlushResponse{
		FlushID:    result.FlushID,
		Groups:     result.Groups,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		Pending:    result.Pending,
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, err := range result.Errors {
		response.Errors = append(response.Errors, err.Error())
	}
	return response
}
