package dto

import (
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ScoreResponse carries a score and how it was reached.
type ScoreResponse struct {
	Breakdown matcher.Breakdown `json:"breakdown"`
	Score     int               `json:"match_score"`
}

// SelectResponse lists the kept candidates, best first.
type SelectResponse struct {
	Matches   model.MatchResult `json:"matches"`
	Count     int               `json:"count"`
	Threshold int               `json:"threshold"`
}

// MatrixResponse is a confusion matrix with its [[TN, FP], [FN, TP]] layout.
type MatrixResponse struct {
	model.ConfusionMatrix
	Outcome model.Outcome `json:"outcome,omitempty"`
	Matrix  [2][2]int     `json:"matrix"`
}

// NewMatrixResponse wraps m; single-item matrices also report their outcome.
func NewMatrixResponse(m model.ConfusionMatrix) MatrixResponse {
	outcome, _ := m.Counts.Outcome()
	return MatrixResponse{
		ConfusionMatrix: m,
		Outcome:         outcome,
		Matrix:          m.Matrix(),
	}
}

// RunListResponse lists stored runs.
type RunListResponse struct {
	Runs  []model.RunSummary `json:"runs"`
	Count int                `json:"count"`
}
