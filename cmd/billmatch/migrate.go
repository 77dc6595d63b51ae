package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/cli"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Other commands migrate automatically; this is useful to check the schema
version or prepare a database ahead of time.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show the current schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	statusOnly, _ := cmd.Flags().GetBool("status")
	dbPath := config.DatabasePath()
	out := cmd.OutOrStdout()

	slog.Debug("Opening database", "database", dbPath, "status_only", statusOnly)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	before, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if statusOnly {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Database %s is at schema version %d (latest %d)",
			dbPath, before, storage.ExpectedSchemaVersion)))
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	after, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if after == before {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Database already at schema version %d", after)))
		return nil
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated database from version %d to %d", before, after)))
	return nil
}
