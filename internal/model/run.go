package model

import "time"

// DocumentResult is the evaluation of one document against the ledger.
type DocumentResult struct {
	Record         *DocumentRecord `json:"record,omitempty"`
	Document       string          `json:"document"`
	ExpectedSource string          `json:"expected_source"`
	Error          string          `json:"error,omitempty"`
	RawText        string          `json:"-"`
	Matches        MatchResult     `json:"matches"`
	Matrix         ConfusionMatrix `json:"matrix"`
}

// Outcome is the single classification this document contributed.
func (d DocumentResult) Outcome() Outcome {
	o, _ := d.Matrix.Counts.Outcome()
	return o
}

// Failed reports whether the document never produced a record.
func (d DocumentResult) Failed() bool {
	return d.Record == nil
}

// Run is one evaluation of a document batch against a ledger.
type Run struct {
	CreatedAt  time.Time        `json:"created_at"`
	ID         string           `json:"id"`
	LedgerPath string           `json:"ledger_path"`
	Documents  []DocumentResult `json:"documents"`
	Totals     ConfusionMatrix  `json:"totals"`
	Threshold  int              `json:"threshold"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	CreatedAt  time.Time       `json:"created_at"`
	ID         string          `json:"id"`
	LedgerPath string          `json:"ledger_path"`
	Totals     ConfusionMatrix `json:"totals"`
	Threshold  int             `json:"threshold"`
	Documents  int             `json:"documents"`
}
