// Package textnorm canonicalizes user queries before matching: width
// folding, case and whitespace normalization, abbreviation expansion and
// dictionary-based spelling correction.
package textnorm

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize folds full-width forms to their half-width equivalents, trims,
// lowercases and collapses internal whitespace runs to a single space.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	folded := width.Fold.String(text)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// WordCount counts whitespace-separated words. A run of Chinese text with no
// spaces counts as one word per ideograph so long Chinese messages are not
// mistaken for one-word queries.
func WordCount(text string) int {
	fields := strings.Fields(text)
	if len(fields) == 1 {
		if han := countHan(fields[0]); han > 1 {
			return han
		}
	}
	return len(fields)
}

func countHan(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			n++
		}
	}
	return n
}
