package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/ofx"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/service"
)

// Open loads a ledger file, choosing the reader by extension.
func Open(ctx context.Context, path string) ([]model.LedgerRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("Failed to close ledger file", "path", path, "error", cerr)
		}
	}()

	var rows []model.LedgerRow
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = LoadCSV(f)
	case ".ofx", ".qfx":
		rows, err = ofx.NewParser().Parse(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedLedger, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger %s: %w", filepath.Base(path), err)
	}

	slog.Info("Loaded ledger", "path", path, "rows", len(rows))
	return rows, nil
}

// Fetch pulls rows from a remote source for the given window.
func Fetch(ctx context.Context, src service.LedgerSource, start, end time.Time) ([]model.LedgerRow, error) {
	rows, err := src.Fetch(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no transactions between %s and %s",
			common.ErrEmptyLedger, start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	for i := range rows {
		rows[i].Index = i
	}
	return rows, nil
}
