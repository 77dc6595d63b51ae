package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/evaluation"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/report"
)

func benchmarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark <ground-truth.csv> <predicted.csv>",
		Short: "Compare predicted sources with a labelled ledger",
		Long: `Join two ledgers on date, amount, currency and vendor and score the
predicted source column against the ground truth: confusion matrix over
the source labels plus per-label and weighted precision, recall and F1.

Nothing is reported when either file lacks one of the columns or no row
joins.

Examples:
  billmatch evaluate -l ground_truth.csv --predictions predicted.csv receipts/
  billmatch benchmark ground_truth.csv predicted.csv`,
		Args: cobra.ExactArgs(2),
		RunE: runBenchmark,
	}

	cmd.Flags().Bool("json", false, "Print the report as JSON")

	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	groundTruth, err := readTable(args[0])
	if err != nil {
		return err
	}
	predicted, err := readTable(args[1])
	if err != nil {
		return err
	}

	result := evaluation.Benchmark(groundTruth, predicted)
	out := cmd.OutOrStdout()

	if asJSON {
		if result == nil {
			fmt.Fprintln(out, "null")
			return nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(out, report.NewFormatter().FormatBenchmark(result))
	return nil
}

func readTable(path string) (evaluation.Table, error) {
	f, err := os.Open(config.ExpandPath(path)) // #nosec G304
	if err != nil {
		return evaluation.Table{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("Failed to close file", "path", path, "error", cerr)
		}
	}()

	table, err := evaluation.ReadTable(f)
	if err != nil {
		return evaluation.Table{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}
