// Package export writes evaluation results as CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// MatchesHeader is the column layout of WriteMatchesCSV.
var MatchesHeader = []string{"document", "match_score", "date", "amount", "currency", "vendor", "source"}

// WriteMatchesCSV writes one row per candidate, documents in input order and
// candidates in rank order. Documents without candidates contribute no row.
func WriteMatchesCSV(w io.Writer, results []model.DocumentResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MatchesHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, doc := range results {
		for _, c := range doc.Matches {
			record := []string{
				doc.Document,
				model.FormatScore(c.Score),
				c.Row.DateString(),
				c.Row.AmountString(),
				c.Row.Currency,
				c.Row.Vendor,
				c.Row.Source,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write candidate for %s: %w", doc.Document, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePredictionsCSV writes the ledger with its source column replaced by
// predictions: each document's expected source is written on its top-ranked
// row, every other row is left blank. When two documents claim the same row
// the higher score wins, then the earlier document. The output can be fed to
// a benchmark against the labelled ledger.
func WritePredictionsCSV(w io.Writer, ledger []model.LedgerRow, results []model.DocumentResult) error {
	predicted := predictions(ledger, results)

	extra := extraColumns(ledger)
	header := append([]string{"date", "amount", "currency", "vendor", "source"}, extra...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range ledger {
		record := []string{row.DateString(), row.AmountString(), row.Currency, row.Vendor, predicted[i]}
		for _, col := range extra {
			record = append(record, row.Extra[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write ledger row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

type claim struct {
	source string
	score  int
}

// predictions maps ledger positions to predicted source labels.
func predictions(ledger []model.LedgerRow, results []model.DocumentResult) []string {
	byHash := make(map[string][]int, len(ledger))
	for i, row := range ledger {
		byHash[row.Hash()] = append(byHash[row.Hash()], i)
	}

	claims := make(map[int]claim)
	for _, doc := range results {
		top, ok := doc.Matches.Top()
		if !ok || doc.ExpectedSource == "" {
			continue
		}
		pos := locate(ledger, byHash, top.Row)
		if pos < 0 {
			continue
		}
		if prev, taken := claims[pos]; taken && prev.score >= top.Score {
			continue
		}
		claims[pos] = claim{source: doc.ExpectedSource, score: top.Score}
	}

	out := make([]string, len(ledger))
	for pos, c := range claims {
		out[pos] = c.source
	}
	return out
}

// locate finds row in ledger, by index when it still points at the same row,
// otherwise by content.
func locate(ledger []model.LedgerRow, byHash map[string][]int, row model.LedgerRow) int {
	hash := row.Hash()
	if row.Index >= 0 && row.Index < len(ledger) && ledger[row.Index].Hash() == hash {
		return row.Index
	}
	if positions := byHash[hash]; len(positions) > 0 {
		return positions[0]
	}
	return -1
}

func extraColumns(ledger []model.LedgerRow) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range ledger {
		for k := range row.Extra {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
