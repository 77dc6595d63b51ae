package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the extraction cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every cached extraction",
		Long: `Remove every cached extraction so the next evaluation sends each
document to the extraction API again. Stored runs are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStorage(store)

			n, err := store.PurgeExtractions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed %d cached extractions", n)))
			return nil
		},
	})

	return cmd
}
