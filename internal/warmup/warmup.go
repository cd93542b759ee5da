// Package warmup pre-fills the embedding cache with the questions users ask
// most, so the first semantic searches after a deploy skip the provider
// round trip, and tracks startup readiness while it runs.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/match"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
)

// Defaults for Options.
const (
	DefaultLimit       = 200
	DefaultConcurrency = 4
)

// Stats tracks warmup progress.
// All fields use atomic operations for concurrent access
type Stats struct {
	Questions atomic.Int64 // questions considered
	Embedded  atomic.Int64 // variants embedded
	Failed    atomic.Int64 // variants the provider rejected
}

// QuestionSource lists frequently asked questions. *storage.DB implements it.
type QuestionSource interface {
	TopQuestions(ctx context.Context, limit int) ([]storage.QuestionStat, error)
}

// Options configures cache warming.
type Options struct {
	Questions   QuestionSource
	Holder      *faq.Holder
	Embedder    faq.Embedder
	Limit       int // questions to warm (0 = DefaultLimit)
	Concurrency int // parallel embedding calls (0 = DefaultConcurrency)
	Metrics     *metrics.Metrics
}

// Run embeds the query variants of the most asked questions that were
// answered. Provider failures are counted, not returned; Run fails only
// when the question source fails or ctx ends.
func Run(ctx context.Context, log *logger.Logger, opts Options) (*Stats, error) {
	stats := &Stats{}
	if opts.Embedder == nil || opts.Questions == nil {
		log.Debug("Warmup skipped: no embedder or question source")
		return stats, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	start := time.Now()
	defer func() { opts.Metrics.RecordJob("warmup", time.Since(start).Seconds()) }()

	top, err := opts.Questions.TopQuestions(ctx, opts.Limit)
	if err != nil {
		return stats, fmt.Errorf("warmup: list questions: %w", err)
	}

	var idx *faq.Index
	if opts.Holder != nil {
		idx = opts.Holder.Load()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, q := range top {
		if q.AskCount <= q.FallbackCount {
			continue
		}
		stats.Questions.Add(1)
		for _, v := range variants(q.Question, idx) {
			g.Go(func() error {
				if _, err := opts.Embedder.Embed(gctx, v); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					stats.Failed.Add(1)
					return nil
				}
				stats.Embedded.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stats, fmt.Errorf("warmup canceled: %w", err)
		}
		return stats, err
	}

	log.WithFields(map[string]any{
		"questions":   stats.Questions.Load(),
		"embedded":    stats.Embedded.Load(),
		"failed":      stats.Failed.Load(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Embedding cache warmed")
	return stats, nil
}

func variants(question string, idx *faq.Index) []string {
	if idx == nil {
		return match.Variants(question, nil)
	}
	return match.Variants(question, idx.Dictionary())
}
