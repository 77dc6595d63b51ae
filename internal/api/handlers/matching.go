package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
)

// MatchingHandler serves scoring, selection and classification.
type MatchingHandler struct {
	Base
	matcher *matcher.Matcher
	logger  *slog.Logger
}

// NewMatchingHandler creates a handler around m.
func NewMatchingHandler(m *matcher.Matcher, logger *slog.Logger) *MatchingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchingHandler{matcher: m, logger: logger}
}

// Score handles POST /api/score.
func (h *MatchingHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req dto.ScoreRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	breakdown := h.matcher.Explain(req.Row, req.Document)
	h.WriteJSON(w, http.StatusOK, dto.ScoreResponse{Score: breakdown.Score, Breakdown: breakdown})
}

// Select handles POST /api/select.
func (h *MatchingHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req dto.SelectRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	threshold := h.matcher.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := matcher.ValidateThreshold(threshold); err != nil {
		h.WriteError(w, http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
		return
	}

	result, err := h.matcher.Select(req.Ledger, req.Document, threshold)
	if err != nil {
		h.logger.Error("selection failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.SelectResponse{
		Matches:   result,
		Count:     len(result),
		Threshold: threshold,
	})
}

// Classify handles POST /api/classify.
func (h *MatchingHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req dto.ClassifyRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	for i := 1; i < len(req.Matches); i++ {
		if req.Matches[i].Score > req.Matches[i-1].Score {
			h.WriteError(w, http.StatusUnprocessableEntity,
				dto.ValidationError(fmt.Sprintf("matches must be sorted by descending score (index %d)", i)))
			return
		}
	}

	m := evaluation.Classify(req.Ledger, req.Matches, req.ExpectedSource)
	h.WriteJSON(w, http.StatusOK, dto.NewMatrixResponse(m))
}
