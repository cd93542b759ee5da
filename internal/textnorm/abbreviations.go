package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// abbreviations maps chat shorthand to its expansion. No expansion contains
// a key as a whole word, which keeps ExpandAbbreviations idempotent.
// Bare digits (2, 4, 8) are deliberately absent: they appear in real
// questions ("4 digit pin") far more often than as homophones.
var abbreviations = map[string]string{
	"pls":  "please",
	"plz":  "please",
	"thx":  "thanks",
	"ty":   "thank you",
	"u":    "you",
	"ur":   "your",
	"yr":   "your",
	"r":    "are",
	"n":    "and",
	"bc":   "because",
	"b4":   "before",
	"gr8":  "great",
	"l8r":  "later",
	"asap": "as soon as possible",
	"fyi":  "for your information",
	"btw":  "by the way",
	"imo":  "in my opinion",
	"tbh":  "to be honest",
	"idk":  "i do not know",

	"dont":     "do not",
	"cant":     "cannot",
	"wont":     "will not",
	"isnt":     "is not",
	"arent":    "are not",
	"havent":   "have not",
	"hasnt":    "has not",
	"didnt":    "did not",
	"doesnt":   "does not",
	"wasnt":    "was not",
	"werent":   "were not",
	"hadnt":    "had not",
	"wouldnt":  "would not",
	"couldnt":  "could not",
	"shouldnt": "should not",
	"mustnt":   "must not",
	"neednt":   "need not",

	"acc":  "account",
	"acct": "account",
	"act":  "activate",
	"actv": "activate",
	"pmt":  "payment",
	"sub":  "subscription",
	"subs": "subscription",
	"log":  "login",
	"pwd":  "password",
	"pass": "password",
}

// symbolAbbreviations cannot use word boundaries; longer keys come first.
var symbolAbbreviations = []struct{ from, to string }{
	{"w/o", "without"},
	{"b/c", "because"},
	{"w/", "with"},
	{" & ", " and "},
}

var abbreviationPattern = buildAbbreviationPattern()

func buildAbbreviationPattern() *regexp.Regexp {
	keys := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	// longest first so "acct" wins over "acc"
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(keys, "|") + `)\b`)
}

// ExpandAbbreviations replaces whole-word shorthand with its expansion,
// case-insensitively. Text without shorthand is returned unchanged.
func ExpandAbbreviations(text string) string {
	out := text
	for _, sa := range symbolAbbreviations {
		out = strings.ReplaceAll(out, sa.from, sa.to)
	}
	return abbreviationPattern.ReplaceAllStringFunc(out, func(m string) string {
		if full, ok := abbreviations[strings.ToLower(m)]; ok {
			return full
		}
		return m
	})
}

// IsAbbreviation reports whether word is a known shorthand key.
func IsAbbreviation(word string) bool {
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}
