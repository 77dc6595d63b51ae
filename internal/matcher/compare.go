package matcher

import (
	"strings"
	"time"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

// Field names a weighted comparison dimension.
type Field string

// Weighted fields. Amount is not among them: it is a hard pre-filter.
const (
	FieldDate     Field = "date"
	FieldCurrency Field = "currency"
	FieldVendor   Field = "vendor"
)

// FieldScore is the outcome of one comparator. Inapplicable scores do not
// contribute to the weighted total.
type FieldScore struct {
	Field      Field `json:"field"`
	Score      int   `json:"score"`
	Applicable bool  `json:"applicable"`
}

// CompareDate scores 100 when both dates are known and at most
// toleranceDays calendar days apart, else 0.
func CompareDate(rowDate *time.Time, doc model.DocumentRecord, toleranceDays int) FieldScore {
	fs := FieldScore{Field: FieldDate}
	docDate, ok := doc.ParsedDate()
	if rowDate == nil || !ok {
		return fs
	}

	fs.Applicable = true
	if absInt(daysBetween(*rowDate, docDate)) <= toleranceDays {
		fs.Score = 100
	}
	return fs
}

// CompareCurrency scores 100 on a case-insensitive exact match.
func CompareCurrency(rowCurrency string, doc model.DocumentRecord) FieldScore {
	fs := FieldScore{Field: FieldCurrency}
	docCurrency := doc.CurrencyValue()
	if model.IsMissing(rowCurrency) || docCurrency == "" {
		return fs
	}

	fs.Applicable = true
	if strings.EqualFold(strings.TrimSpace(rowCurrency), docCurrency) {
		fs.Score = 100
	}
	return fs
}

// CompareVendor scores the token-set similarity of the normalized names.
func CompareVendor(rowVendor string, doc model.DocumentRecord) FieldScore {
	fs := FieldScore{Field: FieldVendor}
	docVendor := doc.VendorValue()
	if model.IsMissing(rowVendor) || docVendor == "" {
		return fs
	}

	a := NormalizeVendor(rowVendor)
	b := NormalizeVendor(docVendor)
	if a == "" || b == "" {
		return fs
	}

	fs.Applicable = true
	fs.Score = TokenSetRatio(a, b)
	return fs
}

// daysBetween counts calendar days from b to a, ignoring time of day.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
