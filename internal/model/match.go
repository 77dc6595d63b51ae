package model

import "fmt"

// MatchCandidate pairs a ledger row with its similarity score (0-100).
type MatchCandidate struct {
	Row   LedgerRow `json:"row"`
	Score int       `json:"match_score"`
}

// MatchResult is an ordered candidate list, highest score first.
type MatchResult []MatchCandidate

// Top returns the highest-ranked candidate.
func (m MatchResult) Top() (MatchCandidate, bool) {
	if len(m) == 0 {
		return MatchCandidate{}, false
	}
	return m[0], true
}

// Empty reports whether no candidate passed selection.
func (m MatchResult) Empty() bool {
	return len(m) == 0
}

// FormatScore renders a 0-100 score as a percentage string such as "92.0%".
func FormatScore(score int) string {
	return fmt.Sprintf("%.1f%%", float64(score))
}
