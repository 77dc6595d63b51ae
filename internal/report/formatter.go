// Package report renders evaluation runs, match lists and benchmark results
// for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

const barWidth = 30

// Formatter renders reconciliation results with the cli styles.
type Formatter struct {
	border lipgloss.Border
}

// NewFormatter creates a formatter with rounded table borders.
func NewFormatter() *Formatter {
	return &Formatter{border: lipgloss.RoundedBorder()}
}

// FormatRun renders the header, global matrix, metrics and one line per document.
func (f *Formatter) FormatRun(run *model.Run) string {
	if run == nil {
		return cli.ErrorStyle.Render("No run available")
	}

	sections := []string{
		f.formatHeader(run),
		f.FormatMatrix(run.Totals),
		f.FormatMetrics(run.Totals.Metrics),
	}

	if len(run.Documents) > 0 {
		lines := make([]string, 0, len(run.Documents)+1)
		lines = append(lines, cli.SubtitleStyle.Render("Documents:"))
		for _, doc := range run.Documents {
			lines = append(lines, f.FormatDocument(doc))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

func (f *Formatter) formatHeader(run *model.Run) string {
	title := cli.FormatTitle("Reconciliation Report")
	ledger := cli.SubtitleStyle.Render(fmt.Sprintf("Ledger: %s   Threshold: %d", run.LedgerPath, run.Threshold))

	var meta []string
	if run.ID != "" {
		meta = append(meta, "Run "+run.ID)
	}
	if !run.CreatedAt.IsZero() {
		meta = append(meta, run.CreatedAt.Format(time.RFC3339))
	}
	meta = append(meta, fmt.Sprintf("%d documents", len(run.Documents)))

	return fmt.Sprintf("%s\n%s\n%s", title, ledger, cli.SubtleStyle.Render(strings.Join(meta, " · ")))
}

// FormatMatrix draws the [[TN, FP], [FN, TP]] grid in a box.
func (f *Formatter) FormatMatrix(m model.ConfusionMatrix) string {
	grid := table.New().
		Border(f.border).
		Headers("", "Predicted no match", "Predicted match").
		Row("Actual absent", cell("TN", m.TN), cell("FP", m.FP)).
		Row("Actual present", cell("FN", m.FN), cell("TP", m.TP)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return cli.BoldStyle.Padding(0, 1)
			case col == 0:
				return cli.SubtleStyle.Padding(0, 1)
			case (row == 0 && col == 1) || (row == 1 && col == 2):
				return cli.SuccessStyle.Padding(0, 1)
			default:
				return cli.ErrorStyle.Padding(0, 1)
			}
		})

	return cli.RenderBox(cli.ChartIcon+" Confusion Matrix", grid.String())
}

func cell(label string, n int) string {
	return fmt.Sprintf("%s %d", label, n)
}

// FormatMetrics renders accuracy, precision, recall and F1 as percentage bars.
func (f *Formatter) FormatMetrics(m model.Metrics) string {
	rows := []struct {
		name  string
		value float64
	}{
		{"Accuracy", m.Accuracy},
		{"Precision", m.Precision},
		{"Recall", m.Recall},
		{"F1 score", m.F1},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		style := metricStyle(r.value)
		filled := int(float64(barWidth) * r.value / 100)
		filled = max(0, min(barWidth, filled))
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		lines = append(lines, fmt.Sprintf("%-10s %s %s", r.name, style.Render(bar), style.Render(fmt.Sprintf("%6.2f%%", r.value))))
	}
	return strings.Join(lines, "\n")
}

func metricStyle(value float64) lipgloss.Style {
	switch {
	case value >= 90:
		return cli.SuccessStyle
	case value >= 70:
		return cli.WarningStyle
	default:
		return cli.ErrorStyle
	}
}

// FormatDocument renders one document's outcome and top candidate.
func (f *Formatter) FormatDocument(doc model.DocumentResult) string {
	line := fmt.Sprintf("%s %s", cli.FormatOutcome(doc.Outcome()), doc.Document)

	switch {
	case doc.Error != "":
		line += " " + cli.ErrorStyle.Render("("+doc.Error+")")
	case doc.Matches.Empty():
		line += " " + cli.SubtleStyle.Render("no candidate")
	default:
		top, _ := doc.Matches.Top()
		source := top.Row.Source
		if source == "" {
			source = "row " + strconv.Itoa(top.Row.Index)
		}
		line += fmt.Sprintf(" → %s %s", source, cli.SubtleStyle.Render(model.FormatScore(top.Score)))
		if n := len(doc.Matches); n > 1 {
			line += cli.SubtleStyle.Render(fmt.Sprintf(" (+%d more)", n-1))
		}
	}
	return line
}

// FormatMatches renders a ranked candidate table.
func (f *Formatter) FormatMatches(document string, result model.MatchResult, threshold int) string {
	title := cli.TitleStyle.Render(fmt.Sprintf("Candidates for %s", document))
	if result.Empty() {
		return title + "\n" + cli.FormatWarning(fmt.Sprintf("No ledger row scored %d or more", threshold))
	}

	t := table.New().
		Border(f.border).
		Headers("#", "Match score", "Date", "Amount", "Currency", "Vendor", "Source")
	for i, c := range result {
		t.Row(strconv.Itoa(i+1), model.FormatScore(c.Score), c.Row.DateString(), c.Row.AmountString(),
			c.Row.Currency, c.Row.Vendor, c.Row.Source)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return cli.BoldStyle.Padding(0, 1)
		}
		if col == 1 && row >= 0 && row < len(result) {
			return cli.ScoreStyle(result[row].Score, threshold).Padding(0, 1)
		}
		return cli.TableCellStyle.PaddingLeft(1)
	})

	return title + "\n" + t.String()
}

// FormatBenchmark renders a benchmark report; nil means nothing could be compared.
func (f *Formatter) FormatBenchmark(r *evaluation.BenchmarkReport) string {
	if r == nil {
		return cli.FormatWarning("Benchmark unavailable: missing columns or no overlapping rows")
	}

	var sections []string
	sections = append(sections, cli.FormatTitle("Benchmark"))
	sections = append(sections, cli.SubtitleStyle.Render(fmt.Sprintf("%d joined rows, %d labels", r.Joined, len(r.Labels))))
	sections = append(sections, f.FormatMetrics(r.Metrics))
	sections = append(sections, r.String())
	return strings.Join(sections, "\n\n")
}

// FormatRunList renders stored run summaries, newest first.
func (f *Formatter) FormatRunList(runs []model.RunSummary) string {
	if len(runs) == 0 {
		return cli.FormatInfo("No runs stored yet")
	}

	t := table.New().
		Border(f.border).
		Headers("ID", "Created", "Ledger", "Docs", "Threshold", "Accuracy", "F1")
	for _, r := range runs {
		t.Row(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.LedgerPath,
			strconv.Itoa(r.Documents), strconv.Itoa(r.Threshold),
			fmt.Sprintf("%.1f%%", r.Totals.Accuracy), fmt.Sprintf("%.1f%%", r.Totals.F1))
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return cli.BoldStyle.Padding(0, 1)
		}
		return cli.TableCellStyle.PaddingLeft(1)
	})

	return cli.FormatTitle("Stored runs") + "\n" + t.String()
}
