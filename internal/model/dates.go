package model

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// dateLayouts are tried in order for loosely formatted ledger dates.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// ParseDate coerces a loosely formatted date string into a calendar date.
// Values that cannot be read report false and should be treated as absent.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
