package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/export"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/extract"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/pipeline"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/report"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/sheets"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/storage"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/tui"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <documents...>",
		Short: "Evaluate matching over a batch of documents",
		Long: `Extract every document, rank its ledger candidates and classify the
result as TP, FP, TN or FN against the ledger row whose source names the
document. The run is saved so it can be reviewed, exported or rematched.

A document's expected source is its base name plus the configured suffix,
so invoice_001.png is expected to match the row whose source is
invoice_001.json.

Examples:
  # Evaluate a directory of receipts
  billmatch evaluate --ledger ground_truth.csv receipts/

  # Write the candidates and a predicted ledger for 'billmatch benchmark'
  billmatch evaluate -l ground_truth.csv --export matches.csv --predictions predicted.csv receipts/*.png

  # Browse the results interactively
  billmatch evaluate -l ground_truth.csv --review receipts/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEvaluate,
	}

	addLedgerFlags(cmd)
	cmd.Flags().IntP("threshold", "t", matcher.DefaultThreshold, "Minimum score (0-100) a candidate must reach")
	cmd.Flags().String("export", "", "Write every candidate to this CSV file")
	cmd.Flags().String("predictions", "", "Write the ledger with predicted sources to this CSV file")
	cmd.Flags().Bool("sheets", false, "Export the run to Google Sheets")
	cmd.Flags().Bool("review", false, "Open the interactive review after evaluation")
	cmd.Flags().Bool("json", false, "Print the run as JSON")
	cmd.Flags().Bool("no-save", false, "Do not store the run")
	cmd.Flags().Bool("no-cache", false, "Skip the extraction cache")
	cmd.Flags().Int("workers", 0, "Documents extracted in parallel (default from config)")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	noSave, _ := cmd.Flags().GetBool("no-save")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	m, err := newMatcher()
	if err != nil {
		return err
	}
	threshold, err := thresholdFor(cmd, m)
	if err != nil {
		return err
	}

	evalCfg, err := config.LoadEvaluationConfig()
	if err != nil {
		return err
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		evalCfg.Workers = workers
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	rows, ledgerName, err := loadLedger(cmd)
	if err != nil {
		return err
	}

	var db *storage.SQLiteStorage
	if !noSave || !noCache {
		db, err = openStorage(ctx)
		if err != nil {
			return err
		}
		defer closeStorage(db)
	}

	var cache extract.Store
	if db != nil && !noCache {
		cache = db
	}
	extractor, err := newExtractor(cache)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(extractor, m, evalCfg)
	run, err := evaluateWithProgress(ctx, cmd.ErrOrStderr(), runner, pipeline.Request{
		LedgerPath: ledgerName,
		Ledger:     rows,
		Documents:  runner.Documents(files),
		Threshold:  threshold,
	})
	if err != nil {
		return err
	}

	if db != nil && !noSave {
		if err := db.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		slog.Info("Saved run", "run_id", run.ID)
	}

	if err := printRun(cmd, run); err != nil {
		return err
	}

	return finishRun(cmd, run, rows)
}

// evaluateWithProgress runs the batch behind a progress bar. An interrupt
// cancels the batch and is reported as a user error.
func evaluateWithProgress(ctx context.Context, w io.Writer, runner *pipeline.Runner, req pipeline.Request) (*model.Run, error) {
	progress := cli.NewProgress(len(req.Documents), w, "Evaluating documents")
	runner.OnProgress(func(done, _ int, _ model.DocumentResult) {
		progress.Set(done)
	})

	interrupts := cli.NewInterruptHandler(w, "Evaluation")
	runCtx := interrupts.HandleInterrupts(ctx)
	defer interrupts.Stop()

	run, err := runner.Run(runCtx, req)
	if err != nil {
		if interrupts.WasInterrupted() && errors.Is(err, context.Canceled) {
			return nil, common.NewUserError("evaluation interrupted", err)
		}
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	progress.Finish()
	return run, nil
}

func printRun(cmd *cobra.Command, run *model.Run) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	fmt.Fprintln(out, report.NewFormatter().FormatRun(run))
	return nil
}

// finishRun handles the optional exports and the interactive review.
func finishRun(cmd *cobra.Command, run *model.Run, rows []model.LedgerRow) error {
	ctx := cmd.Context()

	if path, _ := cmd.Flags().GetString("export"); path != "" {
		if err := writeFile(path, func(w io.Writer) error {
			return export.WriteMatchesCSV(w, run.Documents)
		}); err != nil {
			return err
		}
		slog.Info("Wrote candidates", "path", path)
	}

	if path, _ := cmd.Flags().GetString("predictions"); path != "" {
		if err := writeFile(path, func(w io.Writer) error {
			return export.WritePredictionsCSV(w, rows, run.Documents)
		}); err != nil {
			return err
		}
		slog.Info("Wrote predictions", "path", path)
	}

	if toSheets, _ := cmd.Flags().GetBool("sheets"); toSheets {
		if err := exportToSheets(ctx, cmd.OutOrStdout(), run); err != nil {
			return err
		}
	}

	if review, _ := cmd.Flags().GetBool("review"); review {
		return tui.RunReview(ctx, run, tui.Options{Theme: viper.GetString("ui.theme")})
	}
	return nil
}

func exportToSheets(ctx context.Context, out io.Writer, run *model.Run) error {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return common.NewUserError("Google Sheets is not configured, run 'billmatch auth sheets'", err)
	}

	writer, err := sheets.NewWriter(ctx, *cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}

	spreadsheetID, err := writer.Write(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to export to Google Sheets: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Exported to https://docs.google.com/spreadsheets/d/%s", spreadsheetID)))
	return nil
}

// writeFile creates path and hands it to write, reporting close errors.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(config.ExpandPath(path)) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
