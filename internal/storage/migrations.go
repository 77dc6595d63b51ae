package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Runs, run documents and extraction cache",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					created_at DATETIME NOT NULL,
					ledger_path TEXT NOT NULL,
					threshold INTEGER NOT NULL,
					documents INTEGER NOT NULL,
					tp INTEGER NOT NULL DEFAULT 0,
					fp INTEGER NOT NULL DEFAULT 0,
					tn INTEGER NOT NULL DEFAULT 0,
					fn INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_runs_created_at ON runs(created_at)`,

				`CREATE TABLE IF NOT EXISTS run_documents (
					run_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					document_id TEXT NOT NULL,
					expected_source TEXT NOT NULL,
					outcome TEXT NOT NULL CHECK (outcome IN ('TP', 'FP', 'TN', 'FN')),
					top_source TEXT,
					top_score INTEGER,
					candidates INTEGER NOT NULL DEFAULT 0,
					error TEXT,
					PRIMARY KEY (run_id, position),
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS extractions (
					hash TEXT PRIMARY KEY,
					record_json TEXT NOT NULL,
					raw_text TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Keep extracted records and candidate lists with run documents",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE run_documents ADD COLUMN record_json TEXT`,
				`ALTER TABLE run_documents ADD COLUMN matches_json TEXT`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
