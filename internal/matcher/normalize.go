// Package matcher scores ledger rows against extracted document records and
// selects the candidates that are likely the same transaction.
package matcher

import (
	"regexp"
	"strings"
	"unicode"
)

// businessSuffixes are stripped from the end of vendor names, in this order.
var businessSuffixes = []string{
	"inc", "llc", "ltd", "corp", "co", "gmbh", "bv", "pty", "sa", "sas", "sarl",
}

var (
	// RE2's \s is ASCII only; \p{Z} keeps non-breaking and other Unicode spaces.
	punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}]`)
	whitespaceRegex  = regexp.MustCompile(`[\s\p{Z}]+`)
)

// NormalizeVendor canonicalizes a vendor name for comparison: lower-cased,
// trailing legal-entity suffixes removed, punctuation dropped and
// whitespace collapsed.
func NormalizeVendor(name string) string {
	name = strings.ToLower(name)

	for _, suffix := range businessSuffixes {
		name = strings.TrimSpace(trimWordSuffix(name, suffix))
	}

	name = punctuationRegex.ReplaceAllString(name, "")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// trimWordSuffix removes suffix (optionally followed by one period) when it
// ends s as a whole word.
func trimWordSuffix(s, suffix string) string {
	body := strings.TrimSuffix(s, ".")
	if !strings.HasSuffix(body, suffix) {
		return s
	}
	rest := body[:len(body)-len(suffix)]
	if rest != "" {
		last := []rune(rest)
		if isWordRune(last[len(last)-1]) {
			return s
		}
	}
	return rest
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
