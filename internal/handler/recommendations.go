package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	gwerrors "github.com/mir00r/recommendation-gateway/internal/errors"
	"github.com/mir00r/recommendation-gateway/internal/service"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
)

// RecommendationHandler serves the recommendation API.
type RecommendationHandler struct {
	orchestrator *service.Orchestrator
	dedup        *service.DedupService
	logger       *logger.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(orchestrator *service.Orchestrator, dedup *service.DedupService, log *logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		orchestrator: orchestrator,
		dedup:        dedup,
		logger:       log.WithField("component", "recommendation_handler"),
	}
}

// recommendationResponse is the API response envelope.
type recommendationResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Count           int                     `json:"count"`
}

// Recommend handles POST /api/v1/recommendations
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req domain.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerrors.NewInvalidRequestError("malformed JSON body"))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, gwerrors.NewInvalidRequestError("prompt is required"))
		return
	}

	recs, err := h.orchestrator.FetchRecommendations(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Warn("Recommendation request failed")
		writeError(w, gwerrors.WrapError(err, gwerrors.ErrCodeServiceUnavailable, "orchestrator", "recommendation fetch failed"))
		return
	}

	writeJSON(w, http.StatusOK, recommendationResponse{
		Recommendations: recs,
		Count:           len(recs),
	})
}

// ClearHistory handles POST /api/v1/recommendations/history/clear
func (h *RecommendationHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.dedup.ClearHistory()
	writeJSON(w, http.StatusOK, map[string]string{"status": "history cleared"})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// writeError writes a structured gateway error as JSON
func writeError(w http.ResponseWriter, err *gwerrors.GatewayError) {
	writeJSON(w, err.HTTPStatusCode(), map[string]interface{}{
		"error":   err.Message,
		"code":    err.Code,
		"details": err.Details,
	})
}
