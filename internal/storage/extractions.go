package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// GetExtraction returns the cached record and raw OCR text for a document
// content hash, or common.ErrNotFound.
func (s *SQLiteStorage) GetExtraction(ctx context.Context, hash string) (*model.DocumentRecord, string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(hash, "hash"); err != nil {
		return nil, "", err
	}

	var recordJSON string
	var rawText sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json, raw_text FROM extractions WHERE hash = ?`, hash).
		Scan(&recordJSON, &rawText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("extraction %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get extraction: %w", err)
	}

	var record model.DocumentRecord
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, "", fmt.Errorf("%w: extraction %s: %w", common.ErrDatabaseCorrupted, hash, err)
	}
	return &record, rawText.String, nil
}

// SaveExtraction caches an extraction, replacing any previous entry for the hash.
func (s *SQLiteStorage) SaveExtraction(ctx context.Context, hash string, record *model.DocumentRecord, rawText string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(hash, "hash"); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extractions (hash, record_json, raw_text, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(hash) DO UPDATE SET
			record_json = excluded.record_json,
			raw_text = excluded.raw_text,
			created_at = CURRENT_TIMESTAMP`,
		hash, string(data), nullIfEmpty(rawText))
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// PurgeExtractions empties the extraction cache and reports how many entries were removed.
func (s *SQLiteStorage) PurgeExtractions(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM extractions`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge extractions: %w", err)
	}
	return result.RowsAffected()
}
