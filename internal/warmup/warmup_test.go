package warmup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
)

type fakeQuestions struct {
	stats []storage.QuestionStat
	err   error
	limit int
}

func (f *fakeQuestions) TopQuestions(_ context.Context, limit int) ([]storage.QuestionStat, error) {
	f.limit = limit
	return f.stats, f.err
}

type recordingEmbedder struct {
	mu   sync.Mutex
	seen []string
	fail string
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, text)
	if r.fail != "" && strings.Contains(text, r.fail) {
		return nil, errors.New("provider rejected input")
	}
	return []float32{1}, nil
}

func TestRun_EmbedsAnsweredQuestions(t *testing.T) {
	t.Parallel()

	src := &fakeQuestions{stats: []storage.QuestionStat{
		{Question: "How do I reset my password?", AskCount: 5},
		{Question: "pwd reset", AskCount: 3, FallbackCount: 1},
		{Question: "who won the match", AskCount: 2, FallbackCount: 2},
	}}
	emb := &recordingEmbedder{}

	stats, err := Run(context.Background(), logger.New("error"), Options{
		Questions: src,
		Embedder:  emb,
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultLimit, src.limit)
	assert.EqualValues(t, 2, stats.Questions.Load())
	assert.Contains(t, emb.seen, "How do I reset my password?")
	assert.Contains(t, emb.seen, "pwd reset")
	assert.Contains(t, emb.seen, "password reset", "abbreviation expansion is warmed too")
	assert.NotContains(t, emb.seen, "who won the match", "never-answered questions are skipped")
	assert.EqualValues(t, len(emb.seen), stats.Embedded.Load())
	assert.Zero(t, stats.Failed.Load())
}

func TestRun_CountsProviderFailures(t *testing.T) {
	t.Parallel()

	src := &fakeQuestions{stats: []storage.QuestionStat{
		{Question: "where is my magazine", AskCount: 1},
		{Question: "forgot login", AskCount: 1},
	}}
	emb := &recordingEmbedder{fail: "magazine"}

	stats, err := Run(context.Background(), logger.New("error"), Options{Questions: src, Embedder: emb, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 10, src.limit)
	assert.EqualValues(t, 1, stats.Failed.Load())
	assert.EqualValues(t, len(emb.seen)-1, stats.Embedded.Load())
}

func TestRun_SourceError(t *testing.T) {
	t.Parallel()

	src := &fakeQuestions{err: errors.New("database is locked")}
	_, err := Run(context.Background(), logger.New("error"), Options{Questions: src, Embedder: &recordingEmbedder{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestRun_WithoutEmbedderIsNoop(t *testing.T) {
	t.Parallel()

	src := &fakeQuestions{stats: []storage.QuestionStat{{Question: "x", AskCount: 1}}}
	stats, err := Run(context.Background(), logger.New("error"), Options{Questions: src})
	require.NoError(t, err)
	assert.Zero(t, stats.Questions.Load())
	assert.Zero(t, src.limit, "source is not queried")
}
