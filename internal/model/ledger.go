// Package model defines the records exchanged between the ledger loaders,
// the matcher and the evaluation layer.
package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// LedgerRow represents a single transaction line from an accounting ledger.
// Absent string fields are empty; absent dates and amounts are nil / invalid.
type LedgerRow struct {
	Date     *time.Time
	Extra    map[string]string // Columns the loader did not recognize
	Currency string
	Vendor   string
	Source   string // Ground-truth document identifier, used only for evaluation
	Amount   decimal.NullDecimal
	Index    int // Position in the loaded ledger
}

// HasAmount reports whether the row carries a parsed amount.
func (r LedgerRow) HasAmount() bool {
	return r.Amount.Valid
}

// DateString formats the row date as YYYY-MM-DD, or "" when absent.
func (r LedgerRow) DateString() string {
	if r.Date == nil {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// AmountString formats the row amount in canonical decimal form, or "" when absent.
func (r LedgerRow) AmountString() string {
	if !r.Amount.Valid {
		return ""
	}
	return r.Amount.Decimal.String()
}

// Hash identifies a row by its comparable fields.
func (r LedgerRow) Hash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		r.DateString(),
		r.AmountString(),
		strings.ToUpper(r.Currency),
		r.Vendor,
		r.Source)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// DateLayout is the canonical calendar-date layout.
const DateLayout = "2006-01-02"

var amountNoise = regexp.MustCompile(`[$€£¥,\s]`)

// ParseAmount parses a monetary amount, ignoring currency symbols,
// thousands separators and whitespace.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := amountNoise.ReplaceAllString(s, "")
	if cleaned == "" || strings.EqualFold(cleaned, "none") || strings.EqualFold(cleaned, "nan") || IsMissing(cleaned) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

type ledgerRowJSON struct {
	Date     *string           `json:"date"`
	Amount   any               `json:"amount"`
	Extra    map[string]string `json:"extra,omitempty"`
	Currency string            `json:"currency"`
	Vendor   string            `json:"vendor"`
	Source   string            `json:"source"`
	Index    int               `json:"index"`
}

// MarshalJSON renders dates as YYYY-MM-DD and amounts as decimal strings,
// with null for absent values.
func (r LedgerRow) MarshalJSON() ([]byte, error) {
	out := ledgerRowJSON{
		Extra:    r.Extra,
		Currency: r.Currency,
		Vendor:   r.Vendor,
		Source:   r.Source,
		Index:    r.Index,
	}
	if r.Date != nil {
		d := r.DateString()
		out.Date = &d
	}
	if r.Amount.Valid {
		out.Amount = r.Amount.Decimal.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts loosely typed ledger rows: dates in any layout
// ParseDate understands and amounts as numbers or strings.
func (r *LedgerRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var in ledgerRowJSON
	if err := dec.Decode(&in); err != nil {
		return err
	}

	*r = LedgerRow{
		Extra:    in.Extra,
		Currency: strings.TrimSpace(in.Currency),
		Vendor:   strings.TrimSpace(in.Vendor),
		Source:   strings.TrimSpace(in.Source),
		Index:    in.Index,
	}
	if in.Date != nil {
		if d, ok := ParseDate(*in.Date); ok {
			r.Date = &d
		}
	}
	if in.Amount != nil {
		raw, err := cast.ToStringE(in.Amount)
		if err != nil {
			return fmt.Errorf("invalid ledger amount %v: %w", in.Amount, err)
		}
		if amount, ok := ParseAmount(raw); ok {
			r.Amount = decimal.NewNullDecimal(amount)
		}
	}
	for _, field := range []*string{&r.Currency, &r.Vendor, &r.Source} {
		if IsMissing(*field) {
			*field = ""
		}
	}
	return nil
}
