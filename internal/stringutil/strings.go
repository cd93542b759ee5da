// Package stringutil provides string helpers shared by the matchers,
// mostly around mixed English and Chinese text.
package stringutil

import (
	"strings"
	"unicode"
)

// IsHan reports whether r is in the CJK Unified Ideographs block (U+4E00..U+9FFF).
func IsHan(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// HasNonASCII reports whether s contains any rune above U+007F.
func HasNonASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// HasHan reports whether s contains at least one CJK ideograph.
func HasHan(s string) bool {
	return strings.IndexFunc(s, IsHan) >= 0
}

// ExtractHan returns only the CJK ideographs of s, in order.
func ExtractHan(s string) []rune {
	var out []rune
	for _, r := range s {
		if IsHan(r) {
			out = append(out, r)
		}
	}
	return out
}

// StripPunctSpace removes punctuation, symbols and whitespace.
//
//	StripPunctSpace("如何 重置，密码？") returns "如何重置密码"
func StripPunctSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CountContainedRunes counts how many runes of chars occur in s, honoring
// multiplicity: "密密" needs two 密 in s to count twice.
func CountContainedRunes(s string, chars []rune) int {
	available := make(map[rune]int)
	for _, r := range s {
		available[r]++
	}
	matched := 0
	for _, r := range chars {
		if available[r] > 0 {
			available[r]--
			matched++
		}
	}
	return matched
}

// ContainsAllRunes checks if s contains all runes from chars (case-insensitive for ASCII).
// Counts character occurrences and ignores order: "码密" matches "密码".
func ContainsAllRunes(s, chars string) bool {
	if chars == "" {
		return true
	}
	if s == "" {
		return false
	}
	want := []rune(strings.ToLower(chars))
	return CountContainedRunes(strings.ToLower(s), want) == len(want)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
