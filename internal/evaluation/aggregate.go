package evaluation

import (
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Aggregate sums per-document matrices and recomputes the metrics from the
// summed counts. Metrics are never averaged across documents.
func Aggregate(matrices ...model.ConfusionMatrix) model.ConfusionMatrix {
	var total model.Counts
	for _, m := range matrices {
		total = total.Add(m.Counts)
	}
	return model.NewConfusionMatrix(total)
}
