package model

// Outcome is the binary classification of one reconciliation decision.
type Outcome string

// Possible outcomes.
const (
	OutcomeTP Outcome = "TP"
	OutcomeFP Outcome = "FP"
	OutcomeTN Outcome = "TN"
	OutcomeFN Outcome = "FN"
)

// Counts holds the four confusion-matrix cells.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Total is the number of classified items.
func (c Counts) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Add returns the element-wise sum of two count sets.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		TP: c.TP + o.TP,
		FP: c.FP + o.FP,
		TN: c.TN + o.TN,
		FN: c.FN + o.FN,
	}
}

// Outcome returns the single outcome of a one-item matrix.
func (c Counts) Outcome() (Outcome, bool) {
	if c.Total() != 1 {
		return "", false
	}
	switch {
	case c.TP == 1:
		return OutcomeTP, true
	case c.FP == 1:
		return OutcomeFP, true
	case c.TN == 1:
		return OutcomeTN, true
	default:
		return OutcomeFN, true
	}
}

// Metrics are percentages in [0, 100].
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
}

// ConfusionMatrix is a count set together with the metrics derived from it.
type ConfusionMatrix struct {
	Metrics
	Counts
}

// NewConfusionMatrix derives metrics from counts. A zero denominator yields 0.
func NewConfusionMatrix(c Counts) ConfusionMatrix {
	return ConfusionMatrix{Counts: c, Metrics: c.metrics()}
}

// CountsFor builds the one-item count set for an outcome.
func CountsFor(o Outcome) Counts {
	switch o {
	case OutcomeTP:
		return Counts{TP: 1}
	case OutcomeFP:
		return Counts{FP: 1}
	case OutcomeTN:
		return Counts{TN: 1}
	default:
		return Counts{FN: 1}
	}
}

// Matrix lays the counts out as [[TN, FP], [FN, TP]].
func (m ConfusionMatrix) Matrix() [2][2]int {
	return [2][2]int{
		{m.TN, m.FP},
		{m.FN, m.TP},
	}
}

func (c Counts) metrics() Metrics {
	accuracy := ratio(c.TP+c.TN, c.Total())
	precision := ratio(c.TP, c.TP+c.FP)
	recall := ratio(c.TP, c.TP+c.FN)

	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return Metrics{
		Accuracy:  accuracy,
		Precision: precision,
		Recall:    recall,
		F1:        f1,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
