package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// DefaultThreshold is the minimum score a candidate needs to be kept.
const DefaultThreshold = 70

// ErrInvalidThreshold is returned for thresholds outside [0, 100].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// Config controls scoring and selection.
type Config struct {
	Weights           Weights
	DateToleranceDays int
	Threshold         int
}

// DefaultConfig returns the standard matcher configuration.
func DefaultConfig() Config {
	return Config{
		Weights:           DefaultWeights(),
		DateToleranceDays: 1,
		Threshold:         DefaultThreshold,
	}
}

// ValidateThreshold checks that t is a usable score threshold.
func ValidateThreshold(t int) error {
	if t < 0 || t > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, t)
	}
	return nil
}

// Matcher selects and ranks ledger candidates for a document.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	scorer    *Scorer
	logger    *slog.Logger
	threshold int
}

// New creates a matcher from cfg.
func New(cfg Config) (*Matcher, error) {
	if err := ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	scorer, err := NewScorer(cfg.Weights, cfg.DateToleranceDays)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		scorer:    scorer,
		threshold: cfg.Threshold,
		logger:    slog.Default().With("component", "matcher"),
	}, nil
}

// Default returns a matcher using DefaultConfig.
func Default() *Matcher {
	m, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return m
}

// Threshold is the configured default threshold.
func (m *Matcher) Threshold() int {
	return m.threshold
}

// Score returns the weighted similarity of row and doc.
func (m *Matcher) Score(row model.LedgerRow, doc model.DocumentRecord) int {
	return m.scorer.Score(row, doc)
}

// Explain returns the per-field breakdown behind Score.
func (m *Matcher) Explain(row model.LedgerRow, doc model.DocumentRecord) Breakdown {
	return m.scorer.Explain(row, doc)
}

// Select returns the ledger rows matching doc with a score of at least
// threshold, best first. Only rows whose amount equals the document amount
// exactly are scored; a document without a readable amount matches nothing.
// Equal scores keep ledger order.
func (m *Matcher) Select(ledger []model.LedgerRow, doc *model.DocumentRecord, threshold int) (model.MatchResult, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	result := model.MatchResult{}
	if doc == nil || len(ledger) == 0 {
		return result, nil
	}

	docAmount, ok := doc.ParsedAmount()
	if !ok {
		m.logger.Debug("Document amount is not usable, skipping selection", "amount", doc.Amount)
		return result, nil
	}

	var considered int
	for _, row := range ledger {
		if !row.HasAmount() || !row.Amount.Decimal.Equal(docAmount) {
			continue
		}
		considered++

		score := m.scorer.Score(row, *doc)
		if score < threshold {
			continue
		}
		result = append(result, model.MatchCandidate{Row: row, Score: score})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})

	m.logger.Debug("Selected candidates",
		"ledger_rows", len(ledger),
		"amount_matches", considered,
		"kept", len(result),
		"threshold", threshold)

	return result, nil
}
