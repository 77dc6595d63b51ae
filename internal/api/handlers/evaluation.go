package handlers

import (
	"net/http"
	"sort"

	"github.com/spf13/cast"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// EvaluationHandler serves aggregation and benchmarking.
type EvaluationHandler struct {
	Base
}

// NewEvaluationHandler creates a new evaluation handler.
func NewEvaluationHandler() *EvaluationHandler {
	return &EvaluationHandler{}
}

// Aggregate handles POST /api/aggregate.
func (h *EvaluationHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req dto.AggregateRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	matrices := make([]model.ConfusionMatrix, 0, len(req.Matrices))
	for _, c := range req.Matrices {
		if c.TP < 0 || c.FP < 0 || c.TN < 0 || c.FN < 0 {
			h.WriteError(w, http.StatusUnprocessableEntity, dto.ValidationError("counts cannot be negative"))
			return
		}
		matrices = append(matrices, model.NewConfusionMatrix(c))
	}

	h.WriteJSON(w, http.StatusOK, dto.NewMatrixResponse(evaluation.Aggregate(matrices...)))
}

// Benchmark handles POST /api/benchmark. It answers 204 when the tables
// cannot be compared.
func (h *EvaluationHandler) Benchmark(w http.ResponseWriter, r *http.Request) {
	var req dto.BenchmarkRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	report := evaluation.Benchmark(toTable(req.GroundTruth), toTable(req.Predicted))
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.WriteJSON(w, http.StatusOK, report)
}

// toTable turns JSON objects into a table whose columns are the union of keys.
func toTable(records []map[string]any) evaluation.Table {
	seen := make(map[string]bool)
	var header []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, col := range header {
			if v, ok := rec[col]; ok && v != nil {
				row[i] = cast.ToString(v)
			}
		}
		rows = append(rows, row)
	}
	return evaluation.NewTable(header, rows)
}
