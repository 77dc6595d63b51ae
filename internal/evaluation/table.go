package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a loosely typed record set with named columns.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// NewTable builds a table from a header and positional records. Column
// names are trimmed and lower-cased; short records leave trailing columns
// empty.
func NewTable(header []string, records [][]string) Table {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeColumn(h)
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}
}

// ReadTable reads a CSV document whose first record is the header.
func ReadTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("empty table: missing header row")
		}
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read records: %w", err)
	}

	return NewTable(header, records), nil
}

// HasColumns reports whether every named column exists.
func (t Table) HasColumns(names ...string) bool {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}
	for _, n := range names {
		if !have[normalizeColumn(n)] {
			return false
		}
	}
	return true
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
