package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/melonneet/ezhishi-chatbot/internal/config"
	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	"github.com/melonneet/ezhishi-chatbot/internal/ctxutil"
	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/genai"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/related"
	"github.com/melonneet/ezhishi-chatbot/internal/sentry"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
	"github.com/melonneet/ezhishi-chatbot/internal/stringutil"
)

// Defaults for Config fields left zero.
const (
	DefaultStageTimeout    = 3 * time.Second
	DefaultSemanticStrict  = 0.5
	DefaultSemanticRelaxed = 0.3
	DefaultMaxQueryRunes   = 500
)

// maxSemanticCandidates is how many further semantic matches follow the
// best result.
const maxSemanticCandidates = 4

// ChatLog receives every turn. Implementations must not block;
// *storage.ChatLogger is one.
type ChatLog interface {
	Record(sessionID string, turn storage.TurnType, text string)
	RecordMessage(m storage.Message)
	RecordQuestion(q storage.Question)
}

// Request is one user message.
type Request struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// Response is the answer to a Request. Results holds the best result first.
type Response struct {
	Results          []match.Result     `json:"results"`
	RelatedQuestions []related.Question `json:"relatedQuestions,omitempty"`
	SessionID        string             `json:"sessionId,omitempty"`
	Suggestions      []convo.Suggestion `json:"suggestions,omitempty"`
}

// Best returns the winning result, or nil for an empty query.
func (r *Response) Best() *match.Result {
	if r == nil || len(r.Results) == 0 {
		return nil
	}
	return &r.Results[0]
}

// Config wires a Pipeline.
type Config struct {
	Match    config.MatchConfig
	Holder   *faq.Holder
	Sessions *convo.Manager
	Embedder faq.Embedder   // nil disables the semantic stages
	Enhancer genai.Enhancer // nil returns FAQ answers verbatim
	ChatLog  ChatLog        // nil disables chat logging
	Stages   []Stage        // nil uses DefaultStages
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// Pipeline resolves messages against the current FAQ index.
type Pipeline struct {
	holder   *faq.Holder
	sessions *convo.Manager
	enhancer genai.Enhancer
	chatlog  ChatLog
	metrics  *metrics.Metrics
	logger   *logger.Logger

	gate     Gate
	rules    *RuleEngine
	exact    *match.ExactMatcher
	semantic *match.SemanticMatcher
	fuzzy    *match.FuzzyMatcher
	related  *related.Generator

	stages          []Stage
	stageTimeout    time.Duration
	semanticStrict  float64
	semanticRelaxed float64
	fuzzyThreshold  float64
	maxQueryRunes   int
}

// New returns a pipeline. Holder and Sessions are required.
func New(cfg Config) *Pipeline {
	mc := cfg.Match
	if mc.StageTimeout <= 0 {
		mc.StageTimeout = DefaultStageTimeout
	}
	if mc.SemanticStrict <= 0 {
		mc.SemanticStrict = DefaultSemanticStrict
	}
	if mc.SemanticRelaxed <= 0 {
		mc.SemanticRelaxed = DefaultSemanticRelaxed
	}
	if mc.FuzzyThreshold <= 0 {
		mc.FuzzyThreshold = match.DefaultFuzzyThreshold
	}
	if mc.MaxQueryRunes <= 0 {
		mc.MaxQueryRunes = DefaultMaxQueryRunes
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New("error")
	}
	log = log.WithModule("pipeline")

	gate := NewGate(mc.GateMaxWords, mc.GateMinWords)
	p := &Pipeline{
		holder:          cfg.Holder,
		sessions:        cfg.Sessions,
		enhancer:        cfg.Enhancer,
		chatlog:         cfg.ChatLog,
		metrics:         cfg.Metrics,
		logger:          log,
		gate:            gate,
		rules:           NewRuleEngine(gate, nil),
		exact:           match.NewExactMatcher(mc.ExactFuzzyMaxDist),
		semantic:        match.NewSemanticMatcher(cfg.Embedder, min(mc.SemanticRelaxed, mc.SemanticStrict), log),
		fuzzy:           match.NewFuzzyMatcher(),
		related:         related.NewGenerator(cfg.Embedder, log),
		stageTimeout:    mc.StageTimeout,
		semanticStrict:  mc.SemanticStrict,
		semanticRelaxed: mc.SemanticRelaxed,
		fuzzyThreshold:  mc.FuzzyThreshold,
		maxQueryRunes:   mc.MaxQueryRunes,
	}
	p.stages = cfg.Stages
	if p.stages == nil {
		p.stages = p.DefaultStages()
	}
	return p
}

// Stages returns the cascade in evaluation order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// DefaultStages returns the standard cascade built on p's matchers.
func (p *Pipeline) DefaultStages() []Stage {
	return []Stage{
		NewStage(StageSmallTalk, func(_ context.Context, q *Query) (*match.Result, error) {
			return SmallTalk(q.Message), nil
		}),
		NewStage(StageGate, func(_ context.Context, q *Query) (*match.Result, error) {
			if !p.gate.ShouldFallback(q.Text, q.Index) {
				return nil, nil
			}
			p.metrics.RecordGateRejection()
			return Fallback(q.Message), nil
		}),
		NewStage(StageRule, func(_ context.Context, q *Query) (*match.Result, error) {
			return p.rules.Answer(q.Text, q.Index), nil
		}),
		// Literal question lookups see only the user's own words: a merged
		// follow-up would otherwise re-match the previous question.
		NewStage(StageExact, func(_ context.Context, q *Query) (*match.Result, error) {
			if m := p.exact.FindBestMatch(q.Index, q.Message); m != nil {
				return m.Result(q.Index), nil
			}
			return nil, nil
		}),
		NewStage(StageChinese, func(_ context.Context, q *Query) (*match.Result, error) {
			if !stringutil.HasHan(q.Message) {
				return nil, nil
			}
			if m := p.exact.MatchChineseCoverage(q.Index, q.Message); m != nil {
				return m.Result(q.Index), nil
			}
			return nil, nil
		}),
		p.semanticStage(StageSemanticStrict, p.semanticStrict),
		NewStage(StageFuzzy, func(_ context.Context, q *Query) (*match.Result, error) {
			if r := p.fuzzy.Search(q.Index, q.Text); r != nil && r.Similarity > p.fuzzyThreshold {
				return r, nil
			}
			return nil, nil
		}),
		p.semanticStage(StageSemanticRelaxed, p.semanticRelaxed),
	}
}

// semanticStage accepts the top semantic result above threshold. Both
// semantic stages read the same cached search.
func (p *Pipeline) semanticStage(name string, threshold float64) Stage {
	return NewStage(name, func(ctx context.Context, q *Query) (*match.Result, error) {
		results, err := q.Semantic(func() ([]match.Result, error) {
			return p.semantic.Search(ctx, q.Index, q.Text, maxSemanticCandidates+1)
		})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || results[0].Similarity <= threshold {
			return nil, nil
		}
		best := results[0]
		return &best, nil
	})
}

// Resolve answers req. An empty query yields empty results without
// touching the session. A query longer than the configured limit is a
// ValidationError. Matching problems never surface as errors: they end in
// the fallback answer.
func (p *Pipeline) Resolve(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &Response{Results: []match.Result{}, SessionID: req.SessionID}, nil
	}
	if utf8.RuneCountInString(query) > p.maxQueryRunes {
		return nil, domerrors.NewValidationError("query", fmt.Sprintf("must be at most %d characters", p.maxQueryRunes))
	}
	idx := p.holder.Load()
	if idx == nil {
		return nil, fmt.Errorf("resolve: faq index not loaded: %w", domerrors.ErrStageUnavailable)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx = ctxutil.WithSessionID(ctx, sessionID)

	var resp *Response
	err := p.sessions.WithSession(ctx, sessionID, func(s *convo.Session) error {
		resp = p.turn(ctx, idx, s, query)
		return nil
	})
	if err != nil {
		if domerrors.IsInvalidInput(err) {
			return nil, err
		}
		p.logger.WithSessionID(sessionID).WithError(err).Warn("Session store unavailable, answering without history")
		if resp == nil {
			resp = p.turn(ctx, idx, convo.NewSession(sessionID, time.Now()), query)
		}
	}
	return resp, nil
}

// turn resolves one message within session s and records it there.
func (p *Pipeline) turn(ctx context.Context, idx *faq.Index, s *convo.Session, query string) *Response {
	start := time.Now()
	message := convo.ResolveReferences(query, s)

	text, merged := message, false
	if last, ok := s.LastTurn(); ok && !convo.DetectTopicChange(last.Query, query) && convo.IsFollowUp(query, s) {
		text, merged = last.Query+" "+message, true
		p.metrics.RecordFollowUpRewrite()
	}

	q := NewQuery(idx, s, message, text)
	best, stage := p.cascade(ctx, q)
	if merged && best.IsFallback {
		q = NewQuery(idx, s, message, message)
		best, stage = p.cascade(ctx, q)
	}

	results := []match.Result{*best}
	if best.FAQ != nil {
		results = append(results, q.semanticCandidates(best.Entry, maxSemanticCandidates)...)
		results[0].Answer = p.enhance(ctx, message, results[0].Answer)
	}

	reply := convo.Reply{Answer: results[0].Answer, MatchType: string(best.Type)}
	var faqQuestion string
	if best.FAQ != nil {
		reply.FAQID = best.FAQ.ID
		reply.FAQQuestion = best.FAQ.Question()
		reply.Category = best.FAQ.Category
		faqQuestion = best.FAQ.QuestionEn
	}
	p.sessions.Record(s, query, reply)

	resp := &Response{
		Results:     results,
		SessionID:   s.ID,
		Suggestions: convo.SuggestNextQuestions(s, faqQuestion),
	}
	if best.Type != match.TypeSmallTalk && best.Type != match.TypeGreeting {
		resp.RelatedQuestions = p.related.Generate(ctx, idx, related.Request{Query: message, Exclude: best.Entry})
	}

	p.logTurn(ctx, s.ID, query, &results[0])
	elapsed := time.Since(start)
	p.metrics.RecordResolution(string(best.Type), elapsed.Seconds())
	p.logger.WithSessionID(s.ID).WithFields(map[string]any{
		"match_type": best.Type,
		"stage":      stage,
		"similarity": best.Similarity,
		"follow_up":  merged,
		"duration":   elapsed.Milliseconds(),
	}).Debug("Query resolved")
	return resp
}

// cascade runs the stages in order and returns the first result with the
// name of the stage that produced it. Timeouts and unavailable stages
// advance the cascade; other failures end it with the fallback.
func (p *Pipeline) cascade(ctx context.Context, q *Query) (*match.Result, string) {
	for _, st := range p.stages {
		if ctx.Err() != nil {
			break
		}
		res, err := p.runStage(ctx, st, q)
		switch {
		case err == nil:
			if res != nil {
				return res, st.Name()
			}
		case errors.Is(err, domerrors.ErrStageUnavailable):
		case errors.Is(err, context.DeadlineExceeded):
			p.metrics.RecordStageError(st.Name(), "timeout")
			p.logger.WithField("stage", st.Name()).Warn("Stage timed out")
		default:
			kind := "error"
			var perr *PanicError
			if errors.As(err, &perr) {
				kind = "panic"
			}
			p.metrics.RecordStageError(st.Name(), kind)
			p.logger.WithField("stage", st.Name()).WithError(err).Error("Stage failed, falling back")
			sentry.CaptureExceptionWithContext(ctx, err)
			return Fallback(q.Message), st.Name()
		}
	}
	return Fallback(q.Message), ""
}

// PanicError is a recovered stage panic.
type PanicError struct {
	Stage string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

type stageOutcome struct {
	result *match.Result
	err    error
}

// runStage runs st under the stage timeout. A stage that ignores its
// context is abandoned when the timeout fires.
func (p *Pipeline) runStage(ctx context.Context, st Stage, q *Query) (*match.Result, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan stageOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome{err: &PanicError{Stage: st.Name(), Value: r, Stack: debug.Stack()}}
			}
		}()
		res, err := st.TryResolve(stageCtx, q)
		done <- stageOutcome{result: res, err: err}
	}()

	var out stageOutcome
	select {
	case out = <-done:
	case <-stageCtx.Done():
		out.err = stageCtx.Err()
	}
	p.metrics.RecordStage(st.Name(), time.Since(start).Seconds())
	return out.result, out.err
}

// enhance rewrites a FAQ answer when an enhancer is configured.
func (p *Pipeline) enhance(ctx context.Context, question, answer string) string {
	if p.enhancer == nil {
		return answer
	}
	out, err := p.enhancer.Enhance(ctx, question, answer)
	if err != nil {
		p.logger.WithError(err).Debug("Answer enhancement failed, using original")
	}
	return out
}

// logTurn hands the turn to the chat log: the user message, the reply and
// a question analytics record.
func (p *Pipeline) logTurn(ctx context.Context, sessionID, query string, best *match.Result) {
	if p.chatlog == nil {
		return
	}
	var faqID string
	if best.FAQ != nil {
		faqID = best.FAQ.ID
	}
	p.chatlog.Record(sessionID, storage.TurnUser, query)
	p.chatlog.RecordMessage(storage.Message{
		SessionID: sessionID,
		Type:      storage.TurnBot,
		Text:      best.Answer,
		MatchType: string(best.Type),
		FAQID:     faqID,
		ClientIP:  ctxutil.GetClientIP(ctx),
		UserAgent: ctxutil.GetUserAgent(ctx),
	})
	p.chatlog.RecordQuestion(storage.Question{
		SessionID: sessionID,
		Text:      query,
		MatchType: string(best.Type),
		FAQID:     faqID,
		Fallback:  best.IsFallback,
	})
}
