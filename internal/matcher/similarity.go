package matcher

import (
	"math"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// TokenSetRatio scores two strings 0-100 on their word sets, ignoring order
// and duplicates. A token set fully contained in the other scores 100.
func TokenSetRatio(a, b string) int {
	pa, pb := processTokens(a), processTokens(b)
	if pa == "" || pb == "" {
		return 0
	}

	setA := tokenSet(pa)
	setB := tokenSet(pb)

	var common, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio(sect, combinedA)
	if r := ratio(sect, combinedB); r > best {
		best = r
	}
	if r := ratio(combinedA, combinedB); r > best {
		best = r
	}
	return best
}

// ratio is the rounded SequenceMatcher similarity of two strings, 0-100.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return int(math.RoundToEven(100 * m.Ratio()))
}

// processTokens lower-cases s and turns every non-word rune into a space.
func processTokens(s string) string {
	s = strings.Map(func(r rune) rune {
		if isWordRune(r) {
			return r
		}
		return ' '
	}, strings.ToLower(s))
	return strings.TrimSpace(s)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
