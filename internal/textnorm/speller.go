package textnorm

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// Corrector suggests spellings for unknown words.
type Corrector interface {
	IsCorrect(word string) bool
	// Corrections returns up to n candidates, best first.
	Corrections(word string, n int) []string
}

// Dictionary is a frequency-weighted word list. Candidates are words at
// optimal string alignment distance 1 (one insertion, deletion,
// substitution or adjacent transposition).
type Dictionary struct {
	freq  map[string]int
	byLen map[int][]string
}

var dictionaryTerm = regexp.MustCompile(`^[a-z]+$`)

// NewDictionary builds a dictionary from raw terms. Terms are lowercased;
// only alphabetic terms of at least three letters are kept. Repeated terms
// raise the term's frequency.
func NewDictionary(terms []string) *Dictionary {
	d := &Dictionary{
		freq:  make(map[string]int),
		byLen: make(map[int][]string),
	}
	for _, t := range terms {
		t = strings.ToLower(t)
		if len(t) < 3 || !dictionaryTerm.MatchString(t) {
			continue
		}
		if d.freq[t] == 0 {
			d.byLen[len(t)] = append(d.byLen[len(t)], t)
		}
		d.freq[t]++
	}
	return d
}

// Len returns the number of distinct words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.freq)
}

// Frequency returns how often word was seen while building the dictionary.
func (d *Dictionary) Frequency(word string) int {
	if d == nil {
		return 0
	}
	return d.freq[strings.ToLower(word)]
}

// IsCorrect reports whether word is present in the dictionary.
func (d *Dictionary) IsCorrect(word string) bool {
	return d.Frequency(word) > 0
}

// Corrections returns up to n dictionary words at edit distance 1 from
// word, ordered by frequency (desc) then alphabetically.
func (d *Dictionary) Corrections(word string, n int) []string {
	if d == nil || n <= 0 {
		return nil
	}
	word = strings.ToLower(word)
	if d.freq[word] > 0 {
		return []string{word}
	}

	var candidates []string
	for l := len(word) - 1; l <= len(word)+1; l++ {
		for _, cand := range d.byLen[l] {
			if edlib.OSADamerauLevenshteinDistance(word, cand) == 1 {
				candidates = append(candidates, cand)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		fi, fj := d.freq[candidates[i]], d.freq[candidates[j]]
		if fi != fj {
			return fi > fj
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

var (
	tokenPattern     = regexp.MustCompile(`\w+|\W+`)
	correctableToken = regexp.MustCompile(`^[a-z]{3,}$`)
)

// allowList holds words never rewritten even when the FAQ vocabulary lacks
// them: function words and the product name.
var allowList = map[string]struct{}{
	"ezhishi": {}, "the": {}, "and": {}, "you": {}, "your": {}, "are": {},
	"can": {}, "cannot": {}, "how": {}, "what": {}, "why": {}, "when": {},
	"where": {}, "who": {}, "which": {}, "does": {}, "did": {}, "not": {},
	"for": {}, "with": {}, "this": {}, "that": {}, "have": {}, "has": {},
	"was": {}, "were": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"please": {}, "thanks": {}, "thank": {}, "hello": {}, "from": {}, "about": {},
	"there": {}, "they": {}, "them": {}, "these": {}, "those": {}, "into": {},
	"also": {}, "but": {}, "its": {}, "our": {}, "any": {}, "all": {},
}

// CorrectQuery replaces each unknown alphabetic token of three or more
// letters with its best correction. Punctuation, spacing and tokens with no
// candidate are preserved. A nil corrector returns text unchanged.
func CorrectQuery(text string, c Corrector) string {
	if c == nil || text == "" {
		return text
	}
	tokens := tokenPattern.FindAllString(text, -1)
	changed := false
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if !correctableToken.MatchString(lower) {
			continue
		}
		if _, ok := allowList[lower]; ok || IsAbbreviation(lower) || c.IsCorrect(lower) {
			continue
		}
		if best := c.Corrections(lower, 1); len(best) > 0 {
			tokens[i] = best[0]
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(tokens, "")
}
