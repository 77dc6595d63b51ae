package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/ledger"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/matcher"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/pipeline"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/report"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/tui"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored evaluation runs",
	}

	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	cmd.AddCommand(runsDeleteCmd())
	cmd.AddCommand(runsRematchCmd())

	return cmd
}

func runsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStorage(store)

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.NewFormatter().FormatRunList(runs))
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func runsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			run, err := getRun(cmd, store, args[0])
			if err != nil {
				return err
			}

			if review, _ := cmd.Flags().GetBool("review"); review {
				return tui.RunReview(ctx, run, tui.Options{Theme: viper.GetString("ui.theme")})
			}
			return printRun(cmd, run)
		},
	}
	cmd.Flags().Bool("review", false, "Open the run in the interactive review")
	cmd.Flags().Bool("json", false, "Print the run as JSON")
	return cmd
}

func runsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				ok, err := cli.Confirm(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete run %s?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing deleted"))
					return nil
				}
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.DeleteRun(ctx, id); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("no run with id %s", id), err)
				}
				return fmt.Errorf("failed to delete run: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted run %s", id)))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runsRematchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rematch <run-id>",
		Short: "Re-score a stored run at another threshold",
		Long: `Match the documents of a stored run again without extracting them:
the extracted records are reused, so only selection and classification
run. The result is stored as a new run.

The run's ledger file is read again unless a ledger source flag is given.`,
		Args: cobra.ExactArgs(1),
		RunE: runRematch,
	}

	addLedgerFlags(cmd)
	cmd.Flags().IntP("threshold", "t", matcher.DefaultThreshold, "Minimum score (0-100) a candidate must reach")
	cmd.Flags().Bool("json", false, "Print the run as JSON")
	cmd.Flags().Bool("no-save", false, "Do not store the new run")

	return cmd
}

func runRematch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := newMatcher()
	if err != nil {
		return err
	}
	threshold, err := thresholdFor(cmd, m)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	previous, err := getRun(cmd, store, args[0])
	if err != nil {
		return err
	}

	rows, err := rematchLedger(cmd, previous)
	if err != nil {
		return err
	}

	evalCfg, err := config.LoadEvaluationConfig()
	if err != nil {
		return err
	}
	run, err := pipeline.NewRunner(nil, m, evalCfg).Rematch(ctx, previous, rows, threshold)
	if err != nil {
		return fmt.Errorf("rematch failed: %w", err)
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		if err := store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		slog.Info("Saved run", "run_id", run.ID, "rematched_from", previous.ID)
	}

	return printRun(cmd, run)
}

func rematchLedger(cmd *cobra.Command, previous *model.Run) ([]model.LedgerRow, error) {
	if ledgerFlagsSet(cmd) {
		rows, _, err := loadLedger(cmd)
		return rows, err
	}

	switch previous.LedgerPath {
	case "", plaidLedger, simplefinLedger:
		return nil, common.NewUserError("the run's ledger cannot be reloaded, pass --ledger, --plaid or --simplefin", nil)
	}
	return ledger.Open(cmd.Context(), previous.LedgerPath)
}

type runGetter interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
}

// getRun loads a run, turning a missing id into a user error.
func getRun(cmd *cobra.Command, store runGetter, id string) (*model.Run, error) {
	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("no run with id %s, see 'billmatch runs list'", id), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}
