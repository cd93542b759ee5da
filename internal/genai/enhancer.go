package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

const enhancerSystemPrompt = `You are a helpful customer service assistant for eZhishi, an educational platform.
Your task is to make FAQ answers more helpful and conversational while keeping them accurate.
Keep responses concise but friendly. Use the original answer as the base; never invent prices, dates, or policies.
Reply in the language of the user's question.`

// generator is one chat completion backend.
type generator interface {
	generate(ctx context.Context, system, user string) (string, error)
	provider() Provider
}

// AnswerEnhancer rewrites FAQ answers conversationally. Any failure, empty
// reply or timeout returns the original answer.
type AnswerEnhancer struct {
	gen     generator
	metrics *metrics.Metrics
	timeout time.Duration
}

func newAnswerEnhancer(gen generator, cfg EnhancerConfig, m *metrics.Metrics) *AnswerEnhancer {
	return &AnswerEnhancer{gen: gen, metrics: m, timeout: cfg.RequestTimeout}
}

// Enhance implements Enhancer.
func (e *AnswerEnhancer) Enhance(ctx context.Context, question, answer string) (string, error) {
	if e == nil || e.gen == nil || strings.TrimSpace(answer) == "" {
		return answer, nil
	}
	provider := e.gen.provider().String()

	callCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	user := fmt.Sprintf("User Question: %s\n\nOriginal Answer: %s\n\nPlease provide an enhanced, more conversational version of this answer.", question, answer)
	out, err := e.gen.generate(callCtx, enhancerSystemPrompt, user)
	if err != nil {
		e.metrics.RecordEnhancer(provider, "error")
		return answer, err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		e.metrics.RecordEnhancer(provider, "empty")
		return answer, nil
	}
	e.metrics.RecordEnhancer(provider, "success")
	return out, nil
}

// Provider implements Enhancer.
func (e *AnswerEnhancer) Provider() Provider { return e.gen.provider() }
