package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// SaveRun stores a run and its documents. A run without an ID gets a fresh
// UUID and a zero CreatedAt is set to now; both are written back into run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, created_at, ledger_path, threshold, documents, tp, fp, tn, fn)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.CreatedAt, run.LedgerPath, run.Threshold, len(run.Documents),
			run.Totals.TP, run.Totals.FP, run.Totals.TN, run.Totals.FN)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_documents (
				run_id, position, document_id, expected_source, outcome,
				top_source, top_score, candidates, error, record_json, matches_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare document insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, doc := range run.Documents {
			if err := insertRunDocument(ctx, stmt, run.ID, i, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Saved run", "run_id", run.ID, "documents", len(run.Documents))
	return nil
}

func insertRunDocument(ctx context.Context, stmt *sql.Stmt, runID string, position int, doc model.DocumentResult) error {
	var topSource sql.NullString
	var topScore sql.NullInt64
	if top, ok := doc.Matches.Top(); ok {
		topSource = sql.NullString{String: top.Row.Source, Valid: true}
		topScore = sql.NullInt64{Int64: int64(top.Score), Valid: true}
	}

	var recordJSON sql.NullString
	if doc.Record != nil {
		data, err := json.Marshal(doc.Record)
		if err != nil {
			return fmt.Errorf("failed to encode record for %q: %w", doc.Document, err)
		}
		recordJSON = sql.NullString{String: string(data), Valid: true}
	}

	matches := doc.Matches
	if matches == nil {
		matches = model.MatchResult{}
	}
	matchesJSON, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("failed to encode matches for %q: %w", doc.Document, err)
	}

	_, err = stmt.ExecContext(ctx,
		runID, position, doc.Document, doc.ExpectedSource, string(doc.Outcome()),
		topSource, topScore, len(doc.Matches), nullIfEmpty(doc.Error),
		recordJSON, string(matchesJSON))
	if err != nil {
		return fmt.Errorf("failed to insert run document %q: %w", doc.Document, err)
	}
	return nil
}

// GetRun loads a run with all of its documents.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var run model.Run
	var counts model.Counts
	var documents int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, ledger_path, threshold, documents, tp, fp, tn, fn
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.CreatedAt, &run.LedgerPath, &run.Threshold, &documents,
			&counts.TP, &counts.FP, &counts.TN, &counts.FN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Totals = model.NewConfusionMatrix(counts)

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, expected_source, outcome, error, record_json, matches_json
		FROM run_documents WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	run.Documents = make([]model.DocumentResult, 0, documents)
	for rows.Next() {
		doc, err := scanRunDocument(rows)
		if err != nil {
			return nil, err
		}
		run.Documents = append(run.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run documents: %w", err)
	}

	return &run, nil
}

func scanRunDocument(rows *sql.Rows) (model.DocumentResult, error) {
	var doc model.DocumentResult
	var outcome string
	var errText, recordJSON, matchesJSON sql.NullString

	if err := rows.Scan(&doc.Document, &doc.ExpectedSource, &outcome, &errText, &recordJSON, &matchesJSON); err != nil {
		return doc, fmt.Errorf("failed to scan run document: %w", err)
	}

	doc.Error = errText.String
	doc.Matrix = model.NewConfusionMatrix(model.CountsFor(model.Outcome(outcome)))

	if recordJSON.Valid {
		var record model.DocumentRecord
		if err := json.Unmarshal([]byte(recordJSON.String), &record); err != nil {
			return doc, fmt.Errorf("failed to decode record for %q: %w", doc.Document, err)
		}
		doc.Record = &record
	}

	doc.Matches = model.MatchResult{}
	if matchesJSON.Valid && matchesJSON.String != "" {
		if err := json.Unmarshal([]byte(matchesJSON.String), &doc.Matches); err != nil {
			return doc, fmt.Errorf("failed to decode matches for %q: %w", doc.Document, err)
		}
	}

	return doc, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all runs.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, ledger_path, threshold, documents, tp, fp, tn, fn
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.RunSummary
	for rows.Next() {
		var summary model.RunSummary
		var counts model.Counts
		if err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.LedgerPath, &summary.Threshold,
			&summary.Documents, &counts.TP, &counts.FP, &counts.TN, &counts.FN); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summary.Totals = model.NewConfusionMatrix(counts)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}

// DeleteRun removes a run and its documents.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_documents WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete run documents: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
