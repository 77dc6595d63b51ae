package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// RunStore is the read side of run history.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
}

// RunsHandler serves stored evaluation runs.
type RunsHandler struct {
	Base
	store  RunStore
	logger *slog.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(store RunStore, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{store: store, logger: logger}
}

// List handles GET /api/runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}

	h.WriteJSON(w, http.StatusOK, dto.RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "id", id, "error", err)
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, run)
}
