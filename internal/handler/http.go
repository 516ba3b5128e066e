package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

// Analyzer runs one full competitive comparison.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalyzeRequest) (*types.CompetitiveAnalysis, error)
}

type AnalyzeHandler struct {
	pipeline Analyzer
	validate *validator.Validate
}

func NewAnalyzeHandler(pipeline Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{
		pipeline: pipeline,
		validate: validator.New(),
	}
}

func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindValidation, "invalid JSON body", err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindValidation, "yourAppId and competitorId are required", err))
		return
	}

	analysis, err := h.pipeline.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(analysis); err != nil {
		log.Printf("failed to encode analysis response: %v", err)
	}
}

func (h *AnalyzeHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	body := types.ErrorResponse{
		Error:      "Failed to perform competitive analysis",
		Details:    err.Error(),
		Suggestion: apperr.SuggestionOf(err),
	}
	if kind == apperr.KindValidation {
		body.Error = "Invalid request"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(kind))
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}
