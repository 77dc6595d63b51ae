// Package evaluation measures reconciliation quality: it classifies each
// document's match decision against ground truth, aggregates the results
// and benchmarks recorded predictions against labeled tables.
package evaluation

import (
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Decide applies the reconciliation decision table.
//
//	present  matched  top == expected  outcome
//	yes      yes      yes              TP
//	yes      yes      no               FP
//	yes      no       -                FN
//	no       no       -                TN
//	no       yes      -                FP
func Decide(present, matched, topIsExpected bool) model.Outcome {
	switch {
	case present && matched && topIsExpected:
		return model.OutcomeTP
	case present && matched:
		return model.OutcomeFP
	case present:
		return model.OutcomeFN
	case matched:
		return model.OutcomeFP
	default:
		return model.OutcomeTN
	}
}

// Classify evaluates one document's match result. The document is present
// in the ledger when some row's Source equals expectedSource; only the
// top-ranked candidate decides between TP and FP.
func Classify(ledger []model.LedgerRow, result model.MatchResult, expectedSource string) model.ConfusionMatrix {
	present := SourcePresent(ledger, expectedSource)
	top, matched := result.Top()
	outcome := Decide(present, matched, matched && top.Row.Source == expectedSource)
	return model.NewConfusionMatrix(model.CountsFor(outcome))
}

// SourcePresent reports whether any ledger row carries source.
// An empty source never counts as present.
func SourcePresent(ledger []model.LedgerRow, source string) bool {
	if source == "" {
		return false
	}
	for _, row := range ledger {
		if row.Source == source {
			return true
		}
	}
	return false
}

// ExtractionFailed is the outcome for a document whose fields could not be
// extracted: it counts as a missed match.
func ExtractionFailed() model.ConfusionMatrix {
	return model.NewConfusionMatrix(model.Counts{FN: 1})
}
