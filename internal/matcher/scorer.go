package matcher

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Weights are relative importances; they need not sum to 1.
type Weights struct {
	Date     float64 `json:"date" mapstructure:"date"`
	Currency float64 `json:"currency" mapstructure:"currency"`
	Vendor   float64 `json:"vendor" mapstructure:"vendor"`
}

// DefaultWeights returns the standard field weights.
func DefaultWeights() Weights {
	return Weights{
		Date:     0.60,
		Currency: 0.50,
		Vendor:   0.35,
	}
}

func (w Weights) of(f Field) float64 {
	switch f {
	case FieldDate:
		return w.Date
	case FieldCurrency:
		return w.Currency
	case FieldVendor:
		return w.Vendor
	default:
		return 0
	}
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Fields        []FieldScore `json:"fields"`
	AppliedWeight float64      `json:"applied_weight"`
	Score         int          `json:"score"`
}

// Scorer combines field comparisons into a single 0-100 score.
type Scorer struct {
	logger        *slog.Logger
	weights       Weights
	toleranceDays int
}

// NewScorer creates a scorer with the given weights and date tolerance.
func NewScorer(weights Weights, toleranceDays int) (*Scorer, error) {
	if weights.Date < 0 || weights.Currency < 0 || weights.Vendor < 0 {
		return nil, fmt.Errorf("%w: weights must be non-negative", common.ErrInvalidConfig)
	}
	if toleranceDays < 0 {
		return nil, fmt.Errorf("%w: date tolerance must be non-negative", common.ErrInvalidConfig)
	}

	return &Scorer{
		weights:       weights,
		toleranceDays: toleranceDays,
		logger:        slog.Default().With("component", "scorer"),
	}, nil
}

// Score returns the weighted similarity of row and doc in [0, 100].
func (s *Scorer) Score(row model.LedgerRow, doc model.DocumentRecord) int {
	return s.Explain(row, doc).Score
}

// Explain scores row against doc and reports every field comparison.
// Only applicable fields contribute, so a field missing on either side
// re-normalizes the score over the remaining weights.
func (s *Scorer) Explain(row model.LedgerRow, doc model.DocumentRecord) Breakdown {
	fields := []FieldScore{
		CompareDate(row.Date, doc, s.toleranceDays),
		CompareCurrency(row.Currency, doc),
		CompareVendor(row.Vendor, doc),
	}

	var total, applied float64
	for _, fs := range fields {
		if !fs.Applicable {
			continue
		}
		w := s.weights.of(fs.Field)
		total += float64(fs.Score) * w
		applied += w

		s.logger.Debug("Field comparison",
			"row", row.Index,
			"field", fs.Field,
			"score", fs.Score,
			"weight", w)
	}

	b := Breakdown{Fields: fields, AppliedWeight: applied}
	if applied == 0 {
		s.logger.Warn("No comparable fields between ledger row and document",
			"row", row.Index,
			"document_vendor", doc.Vendor)
		return b
	}

	b.Score = int(math.Min(100, math.RoundToEven(total/applied)))
	return b
}
