package ingest

import (
	"sort"
	"strings"
	"unicode"
)

// InferDelimiter guesses the separator from the first two lines: characters of the first line are tried by
// descending frequency (ties in order of first occurrence), skipping letters, digits and line endings; the first
// one occurring exactly as often in the second line wins. ok is false when it falls back to tab.
func InferDelimiter(text string) (r rune, ok bool) {
	lines := strings.SplitN(text, "\n", 3)
	if len(lines) < 2 {
		return '\t', false
	}
	first, second := lines[0], lines[1]

	counts := map[rune]int{}
	var order []rune
	for _, c := range first {
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	secondCounts := map[rune]int{}
	for _, c := range second {
		secondCounts[c]++
	}
	for _, c := range order {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\n' || c == '\r' {
			continue
		}
		if secondCounts[c] == counts[c] {
			return c, true
		}
	}
	return '\t', false
}
