package evaluation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// JoinColumns identify the same transaction across two label tables.
var JoinColumns = []string{"date", "amount", "currency", "vendor"}

// LabelColumn holds the class label compared by Benchmark.
const LabelColumn = "source"

// ClassReport holds per-label metrics in percent.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// BenchmarkReport compares predicted labels with ground truth over the
// joined rows. Precision, recall and F1 are support-weighted averages.
type BenchmarkReport struct {
	Labels  []string      `json:"labels"`
	Matrix  [][]int       `json:"confusion_matrix"` // rows: true label, columns: predicted label
	Classes []ClassReport `json:"classes"`
	model.Metrics
	Joined int `json:"joined_rows"`
}

type labelPair struct {
	actual    string
	predicted string
}

// Benchmark joins groundTruth and predicted on JoinColumns and scores the
// predicted LabelColumn against the ground-truth one. It returns nil when
// either table lacks a required column or no rows join.
func Benchmark(groundTruth, predicted Table) *BenchmarkReport {
	logger := slog.Default().With("component", "benchmark")

	required := append(append([]string{}, JoinColumns...), LabelColumn)
	if !groundTruth.HasColumns(required...) || !predicted.HasColumns(required...) {
		logger.Warn("Benchmark tables are missing required columns", "required", required)
		return nil
	}

	pairs := innerJoin(groundTruth, predicted)
	if len(pairs) == 0 {
		logger.Info("No overlapping rows between ground truth and predictions")
		return nil
	}

	report := score(pairs)
	logger.Debug("Benchmark computed",
		"joined", report.Joined,
		"labels", len(report.Labels),
		"accuracy", report.Accuracy)
	return report
}

// innerJoin pairs every ground-truth row with every predicted row sharing its
// key, in ground-truth order.
func innerJoin(groundTruth, predicted Table) []labelPair {
	index := make(map[string][]int, len(predicted.Rows))
	for i, row := range predicted.Rows {
		k := joinKey(row)
		index[k] = append(index[k], i)
	}

	var pairs []labelPair
	for _, row := range groundTruth.Rows {
		for _, j := range index[joinKey(row)] {
			pairs = append(pairs, labelPair{
				actual:    strings.TrimSpace(row[LabelColumn]),
				predicted: strings.TrimSpace(predicted.Rows[j][LabelColumn]),
			})
		}
	}
	return pairs
}

// joinKey canonicalizes the join columns so "100.0" and "100" or
// "2024/01/05" and "2024-01-05" meet.
func joinKey(row map[string]string) string {
	date := strings.TrimSpace(row["date"])
	if t, ok := model.ParseDate(date); ok {
		date = t.Format(model.DateLayout)
	}

	amount := strings.TrimSpace(row["amount"])
	if d, ok := model.ParseAmount(amount); ok {
		amount = d.String()
	}

	currency := strings.ToUpper(strings.TrimSpace(row["currency"]))
	vendor := strings.TrimSpace(row["vendor"])

	return strings.Join([]string{date, amount, currency, vendor}, "\x1f")
}

func score(pairs []labelPair) *BenchmarkReport {
	labelSet := make(map[string]bool)
	for _, p := range pairs {
		labelSet[p.actual] = true
		labelSet[p.predicted] = true
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	matrix := make([][]int, len(labels))
	for i := range matrix {
		matrix[i] = make([]int, len(labels))
	}

	var correct int
	for _, p := range pairs {
		matrix[pos[p.actual]][pos[p.predicted]]++
		if p.actual == p.predicted {
			correct++
		}
	}

	report := &BenchmarkReport{
		Labels:  labels,
		Matrix:  matrix,
		Classes: make([]ClassReport, 0, len(labels)),
		Joined:  len(pairs),
	}

	var wPrecision, wRecall, wF1 float64
	for i, label := range labels {
		tp := matrix[i][i]
		var support, predictedCount int
		for j := range labels {
			support += matrix[i][j]
			predictedCount += matrix[j][i]
		}

		cr := ClassReport{
			Label:     label,
			Precision: percent(tp, predictedCount),
			Recall:    percent(tp, support),
			Support:   support,
		}
		if cr.Precision+cr.Recall > 0 {
			cr.F1 = 2 * cr.Precision * cr.Recall / (cr.Precision + cr.Recall)
		}
		report.Classes = append(report.Classes, cr)

		w := float64(support)
		wPrecision += cr.Precision * w
		wRecall += cr.Recall * w
		wF1 += cr.F1 * w
	}

	n := float64(len(pairs))
	report.Accuracy = percent(correct, len(pairs))
	report.Precision = wPrecision / n
	report.Recall = wRecall / n
	report.F1 = wF1 / n

	return report
}

func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

// String renders a per-class report table.
func (r *BenchmarkReport) String() string {
	width := len("weighted avg")
	for _, l := range r.Labels {
		if len(displayLabel(l)) > width {
			width = len(displayLabel(l))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %10s %10s %10s %10s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s %10.2f %10.2f %10.2f %10d\n", width, displayLabel(c.Label), c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %10s %10s %10.2f %10d\n", width, "accuracy", "", "", r.Accuracy, r.Joined)
	fmt.Fprintf(&b, "%*s %10.2f %10.2f %10.2f %10d\n", width, "weighted avg", r.Precision, r.Recall, r.F1, r.Joined)
	return b.String()
}

func displayLabel(l string) string {
	if l == "" {
		return "(none)"
	}
	return l
}
