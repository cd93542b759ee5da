package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

type fakeGenerator struct {
	reply  string
	err    error
	block  bool
	prompt string
}

func (g *fakeGenerator) generate(ctx context.Context, _, user string) (string, error) {
	g.prompt = user
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.reply, g.err
}

func (g *fakeGenerator) provider() Provider { return ProviderOpenAI }

func TestAnswerEnhancer(t *testing.T) {
	t.Parallel()

	const original = "Click Forgot password on the login page."
	tests := []struct {
		name   string
		gen    *fakeGenerator
		want   string
		status string
		err    bool
	}{
		{"rewritten", &fakeGenerator{reply: "  Sure! Just click Forgot password.  "}, "Sure! Just click Forgot password.", "success", false},
		{"empty reply keeps original", &fakeGenerator{reply: "   "}, original, "empty", false},
		{"error keeps original", &fakeGenerator{err: errors.New("503")}, original, "error", true},
		{"timeout keeps original", &fakeGenerator{block: true}, original, "error", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := metrics.New(prometheus.NewRegistry())
			e := newAnswerEnhancer(tt.gen, EnhancerConfig{RequestTimeout: 20 * time.Millisecond}, m)

			got, err := e.Enhance(context.Background(), "How do I reset my password?", original)
			if got != tt.want {
				t.Errorf("Enhance() = %q, want %q", got, tt.want)
			}
			if (err != nil) != tt.err {
				t.Errorf("err = %v, want error %v", err, tt.err)
			}
			if n := testutil.ToFloat64(m.EnhancerRequestsTotal.WithLabelValues("openai", tt.status)); n != 1 {
				t.Errorf("%s count = %v, want 1", tt.status, n)
			}
			if !strings.Contains(tt.gen.prompt, original) {
				t.Error("prompt should include the original answer")
			}
		})
	}
}

func TestAnswerEnhancer_NilAndBlank(t *testing.T) {
	t.Parallel()

	var e *AnswerEnhancer
	if got, err := e.Enhance(context.Background(), "q", "a"); got != "a" || err != nil {
		t.Errorf("nil enhancer = %q, %v", got, err)
	}

	gen := &fakeGenerator{reply: "should not be called"}
	e = newAnswerEnhancer(gen, EnhancerConfig{}, nil)
	if got, _ := e.Enhance(context.Background(), "q", "  "); got != "  " {
		t.Errorf("blank answer = %q", got)
	}
	if gen.prompt != "" {
		t.Error("generator should not be called for a blank answer")
	}
}

func TestNewEmbedder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if e, err := NewEmbedder(ctx, EmbeddingConfig{}, nil, nil); e != nil || err != nil {
		t.Errorf("empty provider = %v, %v; want nil, nil", e, err)
	}
	if _, err := NewEmbedder(ctx, EmbeddingConfig{Provider: "bogus"}, nil, nil); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := NewEmbedder(ctx, EmbeddingConfig{Provider: ProviderGemini}, nil, nil); err == nil {
		t.Error("gemini without key should fail")
	}
	if _, err := NewEmbedder(ctx, EmbeddingConfig{Provider: ProviderOpenAI}, nil, nil); err == nil {
		t.Error("openai without key should fail")
	}

	e, err := NewEmbedder(ctx, EmbeddingConfig{Provider: ProviderLocal}, nil, nil)
	if err != nil {
		t.Fatalf("local embedder: %v", err)
	}
	if _, ok := e.(*CachedEmbedder); !ok || e.Provider() != ProviderLocal {
		t.Errorf("local embedder = %T (%s)", e, e.Provider())
	}

	oa, err := NewEmbedder(ctx, EmbeddingConfig{Provider: ProviderOpenAI, APIKey: "sk-test"}, nil, nil)
	if err != nil || oa.Provider() != ProviderOpenAI {
		t.Errorf("openai embedder = %v, %v", oa, err)
	}
}

func TestNewEnhancer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if e, err := NewEnhancer(ctx, EnhancerConfig{}, nil); e != nil || err != nil {
		t.Errorf("empty provider = %v, %v; want nil, nil", e, err)
	}
	if _, err := NewEnhancer(ctx, EnhancerConfig{Provider: ProviderLocal}, nil); err == nil {
		t.Error("local is not an enhancer provider")
	}
	if _, err := NewEnhancer(ctx, EnhancerConfig{Provider: ProviderOpenAI}, nil); err == nil {
		t.Error("openai enhancer without key should fail")
	}
	e, err := NewEnhancer(ctx, EnhancerConfig{Provider: ProviderOpenAI, APIKey: "sk-test"}, nil)
	if err != nil || e.Provider() != ProviderOpenAI {
		t.Errorf("openai enhancer = %v, %v", e, err)
	}
}
