package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// NotAvailable is the sentinel extractors emit for a field they could not read.
const NotAvailable = "N/A"

// DocumentRecord holds the fields extracted from one invoice or receipt.
// Every field is optional and may carry NotAvailable.
type DocumentRecord struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Vendor   string `json:"vendor"`
}

// IsMissing reports whether a raw field value should be treated as absent.
func IsMissing(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, NotAvailable)
}

// Usable reports whether at least one field was extracted.
func (d DocumentRecord) Usable() bool {
	return !IsMissing(d.Date) || !IsMissing(d.Amount) || !IsMissing(d.Currency) || !IsMissing(d.Vendor)
}

// ParsedDate returns the document date when it is present and in YYYY-MM-DD form.
func (d DocumentRecord) ParsedDate() (time.Time, bool) {
	if IsMissing(d.Date) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(d.Date))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParsedAmount returns the document amount when it is present and numeric.
func (d DocumentRecord) ParsedAmount() (decimal.Decimal, bool) {
	if IsMissing(d.Amount) {
		return decimal.Decimal{}, false
	}
	return ParseAmount(d.Amount)
}

// CurrencyValue returns the trimmed currency, or "" when absent.
func (d DocumentRecord) CurrencyValue() string {
	if IsMissing(d.Currency) {
		return ""
	}
	return strings.TrimSpace(d.Currency)
}

// VendorValue returns the trimmed vendor, or "" when absent.
func (d DocumentRecord) VendorValue() string {
	if IsMissing(d.Vendor) {
		return ""
	}
	return strings.TrimSpace(d.Vendor)
}

// UnmarshalJSON accepts numbers, strings and nulls for every field, since
// extractors are inconsistent about amount typing.
func (d *DocumentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode document record: %w", err)
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		fields[strings.ToLower(strings.TrimSpace(k))] = v
	}

	d.Date = looseString(fields["date"])
	d.Amount = looseString(fields["amount"])
	d.Currency = looseString(fields["currency"])
	d.Vendor = looseString(fields["vendor"])
	return nil
}

func looseString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case json.Number:
		return val.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
