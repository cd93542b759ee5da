package match

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
)

// DefaultMaxDistance is the normalized edit distance below which the fuzzy
// strategy accepts a document.
const DefaultMaxDistance = 0.45

// offsetPenalty is added to a fuzzy window's distance for each character it
// starts into the document, so matches near the start of a question win
// and loose matches deep inside long questions are rejected.
const offsetPenalty = 0.01

// minFuzzyRunes is the shortest query the fuzzy strategy will consider.
const minFuzzyRunes = 2

// minCoverageRunes is the shortest Chinese document the coverage pass will
// accept. Shorter questions are too easy to cover by accident.
const minCoverageRunes = 4

// minLiteralLetters is the shortest lone English word the matcher accepts.
// "how" or "my" alone name no particular question.
const minLiteralLetters = 4

// Strategy names the rule that produced a DocMatch.
type Strategy string

// Exact matching strategies, in the order FindBestMatch tries them.
const (
	StrategySubstring Strategy = "substring"
	StrategyChinese   Strategy = "chinese"
	StrategyAllWords  Strategy = "all_words"
	StrategyFuzzy     Strategy = "fuzzy"
	StrategyCoverage  Strategy = "chinese_coverage"
)

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// DocMatch is a question document hit.
type DocMatch struct {
	Doc      faq.Doc
	Strategy Strategy
	Distance float64 // fuzzy only
}

// Type maps the hit to the match type reported for it.
func (m *DocMatch) Type() Type {
	switch {
	case m.Strategy == StrategyChinese || m.Strategy == StrategyCoverage:
		return TypeChinese
	case m.Doc.Kind.IsAlternate():
		return TypeAlternate
	default:
		return TypeExact
	}
}

// Result converts the hit to a pipeline result. Exact hits are fully
// confident.
func (m *DocMatch) Result(idx *faq.Index) *Result {
	return entryResult(idx, m.Doc.Entry, m.Type(), 1.0, 1.0)
}

// ExactMatcher finds a question document that the query literally names.
// Strategies run from cheapest and most precise to most tolerant; the first
// hit wins:
//  1. case-insensitive substring of a document
//  2. Chinese character overlap, tolerating one missing character
//  3. every query word present in the document
//  4. windowed normalized Levenshtein distance below MaxDistance, for
//     queries without Chinese characters
type ExactMatcher struct {
	MaxDistance float64
}

// NewExactMatcher returns a matcher; maxDistance <= 0 uses DefaultMaxDistance.
func NewExactMatcher(maxDistance float64) *ExactMatcher {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &ExactMatcher{MaxDistance: maxDistance}
}

// FindBestMatch returns the first document hit, or nil. Queries without
// Chinese characters need two words, or one word of minLiteralLetters.
func (m *ExactMatcher) FindBestMatch(idx *faq.Index, query string) *DocMatch {
	raw := strings.TrimSpace(query)
	if raw == "" || idx.Len() == 0 {
		return nil
	}
	lower := strings.ToLower(raw)
	if !stringutil.HasHan(raw) && !specific(lower) {
		return nil
	}
	docs := idx.Docs()

	for _, d := range docs {
		if strings.Contains(d.Lower, lower) {
			return &DocMatch{Doc: d, Strategy: StrategySubstring}
		}
	}

	if stringutil.HasNonASCII(raw) {
		if d, ok := matchHan(docs, raw); ok {
			return &DocMatch{Doc: d, Strategy: StrategyChinese}
		}
	}

	if terms := nonWord.Split(lower, -1); hasTerms(terms) {
		for _, d := range docs {
			if containsAllTerms(d.Lower, terms) {
				return &DocMatch{Doc: d, Strategy: StrategyAllWords}
			}
		}
	}

	if stringutil.HasHan(raw) {
		return nil
	}
	if d, dist, ok := m.closest(docs, lower); ok {
		return &DocMatch{Doc: d, Strategy: StrategyFuzzy, Distance: dist}
	}
	return nil
}

func specific(lower string) bool {
	words, longest := 0, 0
	for _, w := range nonWord.Split(lower, -1) {
		if w == "" {
			continue
		}
		words++
		longest = max(longest, utf8.RuneCountInString(w))
	}
	return words >= 2 || longest >= minLiteralLetters
}

// MatchChineseCoverage handles long Chinese queries that wrap a known
// question in extra words ("请问忘记密码怎么办呢"). It returns the Chinese
// document whose characters are best covered by the query, accepting at
// most one missing character. Queries without Han characters return nil.
func (m *ExactMatcher) MatchChineseCoverage(idx *faq.Index, query string) *DocMatch {
	if !stringutil.HasHan(query) || idx.Len() == 0 {
		return nil
	}
	var (
		best      faq.Doc
		bestRatio float64
		bestLen   int
		found     bool
	)
	for _, d := range idx.Docs() {
		if d.Kind != faq.KindZh && d.Kind != faq.KindZhAlt {
			continue
		}
		chars := stringutil.ExtractHan(d.Text)
		n := len(chars)
		if n < minCoverageRunes {
			continue
		}
		hit := stringutil.CountContainedRunes(query, chars)
		if hit < n-1 {
			continue
		}
		ratio := float64(hit) / float64(n)
		if !found || ratio > bestRatio || (ratio == bestRatio && n > bestLen) {
			best, bestRatio, bestLen, found = d, ratio, n, true
		}
	}
	if !found {
		return nil
	}
	return &DocMatch{Doc: best, Strategy: StrategyCoverage}
}

// matchHan accepts the first document containing at least max(1, n-1) of
// the query's n Chinese characters. Queries with fewer than two Chinese
// characters never match.
func matchHan(docs []faq.Doc, query string) (faq.Doc, bool) {
	chars := stringutil.ExtractHan(query)
	if len(chars) < 2 {
		return faq.Doc{}, false
	}
	need := max(1, len(chars)-1)
	for _, d := range docs {
		if stringutil.CountContainedRunes(stringutil.StripPunctSpace(d.Text), chars) >= need {
			return d, true
		}
	}
	return faq.Doc{}, false
}

func hasTerms(terms []string) bool {
	for _, t := range terms {
		if t != "" {
			return true
		}
	}
	return false
}

func containsAllTerms(text string, terms []string) bool {
	for _, t := range terms {
		if t != "" && !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// closest returns the document with the smallest windowed distance to
// query, when that distance is below MaxDistance. Ties keep the earlier
// document.
func (m *ExactMatcher) closest(docs []faq.Doc, query string) (faq.Doc, float64, bool) {
	q := []rune(query)
	if len(q) < minFuzzyRunes {
		return faq.Doc{}, 0, false
	}
	var best faq.Doc
	bestDist := 2.0
	for _, d := range docs {
		dist := windowDistance(q, []rune(d.Lower))
		if dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if bestDist >= m.MaxDistance {
		return faq.Doc{}, 0, false
	}
	return best, bestDist, true
}

// windowDistance is the normalized Levenshtein distance between q and the
// best-aligned window of text of the same length, plus offsetPenalty per
// character the window starts into text. When text is not longer than q
// the whole strings are compared.
func windowDistance(q, text []rune) float64 {
	if len(text) == 0 {
		return 1
	}
	if len(text) <= len(q) {
		return normalized(string(q), string(text), max(len(q), len(text)))
	}
	best := 2.0
	for start := 0; start+len(q) <= len(text); start++ {
		offset := float64(start) * offsetPenalty
		if offset >= best {
			break
		}
		d := normalized(string(q), string(text[start:start+len(q)]), len(q)) + offset
		if d < best {
			best = d
		}
	}
	return min(best, 1)
}

func normalized(a, b string, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(edlib.LevenshteinDistance(a, b)) / float64(n)
}
