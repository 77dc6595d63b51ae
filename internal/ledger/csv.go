// Package ledger loads ledger rows from CSV exports, OFX statements and
// remote bank sources.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/common"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Recognized ledger columns. Anything else lands in LedgerRow.Extra.
const (
	ColumnDate     = "date"
	ColumnAmount   = "amount"
	ColumnCurrency = "currency"
	ColumnVendor   = "vendor"
	ColumnSource   = "source"
)

// LoadCSV reads a ledger export with a header row. Header names are matched
// case-insensitively. Cells that cannot be coerced leave the field absent.
func LoadCSV(r io.Reader) ([]model.LedgerRow, error) {
	logger := slog.Default().With("component", "ledger")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", common.ErrEmptyLedger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}

	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[i] = name
		present[name] = true
	}
	for _, required := range []string{ColumnDate, ColumnAmount} {
		if !present[required] {
			logger.Warn("Ledger is missing a column, no row will match on it", "column", required)
		}
	}

	var rows []model.LedgerRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger line %d: %w", line, err)
		}

		row := parseRecord(columns, record, logger)
		row.Index = len(rows)
		rows = append(rows, row)
	}

	logger.Debug("Loaded ledger CSV", "rows", len(rows), "columns", len(columns))
	return rows, nil
}

func parseRecord(columns, record []string, logger *slog.Logger) model.LedgerRow {
	var row model.LedgerRow

	for i, name := range columns {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])

		switch name {
		case ColumnDate:
			if d, ok := model.ParseDate(value); ok {
				row.Date = &d
			} else if !model.IsMissing(value) {
				logger.Debug("Unparseable ledger date", "value", value)
			}
		case ColumnAmount:
			if amount, ok := model.ParseAmount(value); ok {
				row.Amount = decimal.NewNullDecimal(amount)
			}
		case ColumnCurrency:
			row.Currency = presentOrEmpty(value)
		case ColumnVendor:
			row.Vendor = presentOrEmpty(value)
		case ColumnSource:
			row.Source = presentOrEmpty(value)
		default:
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[name] = value
		}
	}

	return row
}

func presentOrEmpty(v string) string {
	if model.IsMissing(v) {
		return ""
	}
	return v
}
