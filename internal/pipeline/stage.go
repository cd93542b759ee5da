package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/match"
)

// Stage names, as used in logs and the stage metrics.
const (
	StageSmallTalk       = "small_talk"
	StageGate            = "relevance_gate"
	StageRule            = "rule_override"
	StageExact           = "exact_alternate"
	StageChinese         = "chinese_char"
	StageSemanticStrict  = "semantic_strict"
	StageFuzzy           = "fuzzy_keyword"
	StageSemanticRelaxed = "semantic_relaxed"
)

// Stage is one step of the resolution cascade. TryResolve returns nil, nil
// when the stage has no answer. Returning ErrStageUnavailable skips the
// stage; any other error aborts the cascade with the fallback answer.
type Stage interface {
	Name() string
	TryResolve(ctx context.Context, q *Query) (*match.Result, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	name string
	fn   func(ctx context.Context, q *Query) (*match.Result, error)
}

// NewStage returns a Stage named name running fn.
func NewStage(name string, fn func(ctx context.Context, q *Query) (*match.Result, error)) StageFunc {
	return StageFunc{name: name, fn: fn}
}

// Name implements Stage.
func (s StageFunc) Name() string { return s.name }

// TryResolve implements Stage.
func (s StageFunc) TryResolve(ctx context.Context, q *Query) (*match.Result, error) {
	return s.fn(ctx, q)
}

// Query is the state of one resolution attempt, shared by its stages.
type Query struct {
	// Message is the user's message after reference resolution.
	Message string
	// Text is what the matchers see: Message, or the previous query and
	// Message joined when the message continues the last turn.
	Text    string
	Index   *faq.Index
	Session *convo.Session

	semantic semanticCache
}

// NewQuery returns the query state for matching text against idx.
func NewQuery(idx *faq.Index, s *convo.Session, message, text string) *Query {
	return &Query{Message: message, Text: text, Index: idx, Session: s}
}

// semanticCache runs semantic search at most once per query so the strict
// and relaxed stages share one set of embeddings.
type semanticCache struct {
	once    sync.Once
	done    atomic.Bool
	results []match.Result
	err     error
}

// Semantic returns the semantic results for the query, running search on
// the first call only.
func (q *Query) Semantic(search func() ([]match.Result, error)) ([]match.Result, error) {
	c := &q.semantic
	c.once.Do(func() {
		c.results, c.err = search()
		c.done.Store(true)
	})
	return c.results, c.err
}

// semanticCandidates returns up to n cached semantic results other than
// entry. It never waits for a search still in flight.
func (q *Query) semanticCandidates(entry, n int) []match.Result {
	c := &q.semantic
	if n <= 0 || !c.done.Load() || c.err != nil {
		return nil
	}
	var out []match.Result
	for _, r := range c.results {
		if r.Entry == entry {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}
