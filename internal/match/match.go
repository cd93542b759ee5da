// Package match implements the FAQ matchers the resolution pipeline
// cascades through: exact/alternate question matching, embedding
// similarity and token-overlap keyword scoring.
package match

import (
	"math"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
)

// Type tags how a result was produced.
type Type string

// Match types, as reported to clients in matchType.
const (
	TypeRule      Type = "rule"
	TypeExact     Type = "exact"
	TypeAlternate Type = "alternate"
	TypeChinese   Type = "chinese"
	TypeSemantic  Type = "semantic"
	TypeFuzzy     Type = "fuzzy"
	TypeFallback  Type = "fallback"
	TypeSmallTalk Type = "small_talk"
	TypeGreeting  Type = "greeting"
)

// Result is one resolved answer. FAQ is nil for synthesized answers (rule,
// fallback, small talk) and Entry is then -1.
type Result struct {
	FAQ        *faq.Entry `json:"faq,omitempty"`
	Entry      int        `json:"-"`
	Score      float64    `json:"score"`
	Similarity float64    `json:"similarity"`
	Type       Type       `json:"matchType"`
	IsFallback bool       `json:"isFallback"`
	Answer     string     `json:"answer"`
}

// Synthesized builds a result that is not backed by an FAQ entry.
func Synthesized(t Type, answer string, score float64) *Result {
	return &Result{
		Entry:      -1,
		Score:      score,
		Similarity: score,
		Type:       t,
		IsFallback: t == TypeFallback,
		Answer:     answer,
	}
}

func entryResult(idx *faq.Index, i int, t Type, score, similarity float64) *Result {
	e := idx.Entry(i)
	return &Result{
		FAQ:        e,
		Entry:      i,
		Score:      score,
		Similarity: similarity,
		Type:       t,
		Answer:     e.Answer,
	}
}

// Cosine returns dot(a,b) / (|a|·|b|). It is 0 when the lengths differ or
// either vector has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
