package match

import (
	"strings"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/sliceutil"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// Token weights and the deprioritization factor for generic practice FAQs.
const (
	questionWeight      = 2.0
	answerWeight        = 0.5
	genericPracticeRate = 0.1
)

// DefaultFuzzyThreshold is the similarity a keyword result must exceed for
// the pipeline to use it.
const DefaultFuzzyThreshold = 0.3

var schoolSubjects = []string{
	"math", "maths", "mathematics", "science", "english", "chinese", "malay",
	"tamil", "history", "geography", "physics", "chemistry", "biology",
	"数学", "科学", "英文", "英语", "华文", "中文", "历史", "地理",
}

var practiceWords = []string{"practice", "practise", "exercise", "worksheet", "练习", "习题"}

// FuzzyMatcher scores entries by query token overlap: each query token found
// in an entry's question adds 2, each found in its answer adds 0.5.
type FuzzyMatcher struct{}

// NewFuzzyMatcher returns a keyword matcher.
func NewFuzzyMatcher() *FuzzyMatcher { return &FuzzyMatcher{} }

// Tokens returns the deduplicated scoring tokens of query: normalized,
// abbreviation-expanded, stop words removed, Chinese runs segmented.
func (FuzzyMatcher) Tokens(idx *faq.Index, query string) []string {
	text := textnorm.ExpandAbbreviations(textnorm.Normalize(query))
	return sliceutil.Deduplicate(idx.Terms(text), func(s string) string { return s })
}

// Search returns the best scoring entry, or nil when nothing scores above
// zero. When the query names a school subject, generic practice questions
// are scaled down so "does it cover math" is not won by a practice FAQ
// through the word "practice" alone. Ties are broken by BM25 score, then
// entry order.
func (m FuzzyMatcher) Search(idx *faq.Index, query string) *Result {
	tokens := m.Tokens(idx, query)
	if len(tokens) == 0 || idx.Len() == 0 {
		return nil
	}
	subjectQuery := mentionsAny(strings.ToLower(query), schoolSubjects)

	var (
		bestScore float64
		leaders   []int
	)
	for i, e := range idx.Entries() {
		question := strings.ToLower(e.QuestionEn + " " + e.QuestionZh)
		answer := strings.ToLower(e.Answer)

		score := 0.0
		for _, tok := range tokens {
			if strings.Contains(question, tok) {
				score += questionWeight
			}
			if strings.Contains(answer, tok) {
				score += answerWeight
			}
		}
		if score > 0 && subjectQuery && isGenericPractice(question) {
			score *= genericPracticeRate
		}
		switch {
		case score <= 0 || score < bestScore:
		case score > bestScore:
			bestScore, leaders = score, []int{i}
		default:
			leaders = append(leaders, i)
		}
	}
	if len(leaders) == 0 {
		return nil
	}
	best := breakTie(idx, query, leaders)
	similarity := clamp01(bestScore / ((questionWeight + answerWeight) * float64(len(tokens))))
	return entryResult(idx, best, TypeFuzzy, bestScore, similarity)
}

// breakTie picks the leader with the highest BM25 score, keeping entry
// order among equals.
func breakTie(idx *faq.Index, query string, leaders []int) int {
	if len(leaders) == 1 {
		return leaders[0]
	}
	scores, err := idx.BM25().Scores(query)
	if err != nil || len(scores) == 0 {
		return leaders[0]
	}
	best, bestScore := leaders[0], scores[idx.Entry(leaders[0]).ID]
	for _, i := range leaders[1:] {
		if s := scores[idx.Entry(i).ID]; s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// isGenericPractice reports whether a lowercase question is about practice
// material without naming a subject.
func isGenericPractice(question string) bool {
	return mentionsAny(question, practiceWords) && !mentionsAny(question, schoolSubjects)
}

func mentionsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
