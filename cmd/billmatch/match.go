package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/pipeline"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/report"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <document>",
		Short: "Rank the ledger rows that match one document",
		Long: `Extract one invoice or receipt and list the ledger rows whose amount
matches exactly and whose score reaches the threshold, best first.

Examples:
  # Match a receipt photo against a CSV export
  billmatch match --ledger ~/Downloads/bank.csv receipts/invoice_001.png

  # Use an already extracted record and a lower threshold
  billmatch match -l statement.qfx --threshold 50 invoice_001.json

  # Show how each candidate was scored
  billmatch match -l bank.csv --explain invoice_001.json`,
		Args: cobra.ExactArgs(1),
		RunE: runMatch,
	}

	addLedgerFlags(cmd)
	cmd.Flags().IntP("threshold", "t", matcher.DefaultThreshold, "Minimum score (0-100) a candidate must reach")
	cmd.Flags().Bool("explain", false, "Show the per-field breakdown of each candidate")
	cmd.Flags().Bool("json", false, "Print the ranked list as JSON")
	cmd.Flags().Bool("no-cache", false, "Skip the extraction cache")

	return cmd
}

// matchOutput is the JSON shape of a match result.
type matchOutput struct {
	Record    *model.DocumentRecord `json:"record"`
	Document  string                `json:"document"`
	Matches   model.MatchResult     `json:"matches"`
	Threshold int                   `json:"threshold"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	docPath := args[0]
	explain, _ := cmd.Flags().GetBool("explain")
	asJSON, _ := cmd.Flags().GetBool("json")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	m, err := newMatcher()
	if err != nil {
		return err
	}
	threshold, err := thresholdFor(cmd, m)
	if err != nil {
		return err
	}

	rows, _, err := loadLedger(cmd)
	if err != nil {
		return err
	}

	var store extract.Store
	if !noCache {
		db, err := openStorage(ctx)
		if err != nil {
			slog.Warn("Extraction cache unavailable", "error", err)
		} else {
			defer closeStorage(db)
			store = db
		}
	}

	extractor, err := newExtractor(store)
	if err != nil {
		return err
	}

	extraction, err := extractor.Extract(ctx, docPath)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", docPath, err)
	}

	result, err := m.Select(rows, extraction.Record, threshold)
	if err != nil {
		return err
	}

	docID := pipeline.DocumentID(docPath)
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(matchOutput{
			Document:  docID,
			Record:    extraction.Record,
			Matches:   result,
			Threshold: threshold,
		})
	}

	if rec := extraction.Record; rec != nil {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Extracted: date %s, amount %s %s, vendor %s",
			orDash(rec.Date), orDash(rec.Amount), rec.Currency, orDash(rec.Vendor))))
	}
	fmt.Fprintln(out, report.NewFormatter().FormatMatches(docID, result, threshold))

	if explain && extraction.Record != nil {
		for _, candidate := range result {
			fmt.Fprintln(out, formatBreakdown(candidate, m.Explain(candidate.Row, *extraction.Record)))
		}
	}
	return nil
}

func formatBreakdown(candidate model.MatchCandidate, b matcher.Breakdown) string {
	line := fmt.Sprintf("  row %d (%s):", candidate.Row.Index, orDash(candidate.Row.Source))
	for _, f := range b.Fields {
		if !f.Applicable {
			line += fmt.Sprintf(" %s n/a", f.Field)
			continue
		}
		line += fmt.Sprintf(" %s %d", f.Field, f.Score)
	}
	return line + fmt.Sprintf(" -> %s", model.FormatScore(b.Score))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
