package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// JSONExtractor reads records that were extracted ahead of time and saved
// as JSON objects with date, amount, currency and vendor keys.
type JSONExtractor struct{}

// Extract implements Extractor.
func (JSONExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var record model.DocumentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrExtractionFailed, path, err)
	}

	return &Extraction{Record: &record, RawText: string(data)}, nil
}
