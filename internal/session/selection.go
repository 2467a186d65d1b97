package session

import (
	"strconv"
	"strings"
)

// ParseSelection parses free-text item picks like "1, 3-5, 8" against a
// list of count items. Tokens are integers or inclusive ranges "a-b",
// separated by commas and/or whitespace. 1-based indices map to 0-based
// positions in the result; malformed or out-of-range tokens are silently
// dropped. An input yielding zero picks is not an error; the caller keeps
// the selection pending so the user can retry.
func ParseSelection(text string, count int) []int {
	var picks []int
	for _, token := range splitTokens(text) {
		lo, hi, ok := parseToken(token)
		if !ok {
			continue
		}
		// Clamp to the item list before iterating: a range like
		// "1-9999999999" must cost len(list), not the span of the range.
		if lo < 1 {
			lo = 1
		}
		if hi > count {
			hi = count
		}
		for i := lo; i <= hi; i++ {
			picks = append(picks, i-1)
		}
	}
	return picks
}

// splitTokens splits on commas and whitespace, dropping empties.
func splitTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// parseToken parses "n" or "a-b" into an inclusive range. A reversed range
// is malformed, not reordered.
func parseToken(token string) (lo, hi int, ok bool) {
	if a, b, found := strings.Cut(token, "-"); found {
		lo, err1 := strconv.Atoi(strings.TrimSpace(a))
		hi, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || lo > hi {
			return 0, 0, false
		}
		return lo, hi, true
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, 0, false
	}
	return n, n, true
}
