package dto

import "github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"

// ScoreRequest scores one ledger row against one document.
type ScoreRequest struct {
	Row      model.LedgerRow      `json:"row"`
	Document model.DocumentRecord `json:"document"`
}

// SelectRequest ranks ledger rows for a document. A nil threshold uses the
// server default.
type SelectRequest struct {
	Document  *model.DocumentRecord `json:"document"`
	Threshold *int                  `json:"threshold,omitempty"`
	Ledger    []model.LedgerRow     `json:"ledger"`
}

// ClassifyRequest classifies one match result against ground truth.
type ClassifyRequest struct {
	ExpectedSource string            `json:"expected_source"`
	Ledger         []model.LedgerRow `json:"ledger"`
	Matches        model.MatchResult `json:"matches"`
}

// AggregateRequest sums per-document matrices. Only the counts are read.
type AggregateRequest struct {
	Matrices []model.Counts `json:"matrices"`
}

// BenchmarkRequest compares two labeled tables given as JSON objects.
// Values may be strings or numbers.
type BenchmarkRequest struct {
	GroundTruth []map[string]any `json:"ground_truth"`
	Predicted   []map[string]any `json:"predicted"`
}
