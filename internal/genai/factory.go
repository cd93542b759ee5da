package genai

import (
	"context"
	"fmt"

	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/segment"
)

// NewEmbedder builds the configured embedding provider wrapped in a cache.
// An empty provider returns (nil, nil): semantic search is disabled.
func NewEmbedder(ctx context.Context, cfg EmbeddingConfig, seg segment.Segmenter, m *metrics.Metrics) (Embedder, error) {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	var base Embedder
	switch cfg.Provider {
	case "":
		return nil, nil //nolint:nilnil // semantic search disabled
	case ProviderGemini:
		e, err := newGeminiEmbedder(ctx, cfg)
		if err != nil {
			return nil, err
		}
		base = e
	case ProviderOpenAI:
		e, err := newOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		base = e
	case ProviderLocal:
		base = NewLocalEmbedder(cfg.Dimensions, seg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	return NewCachedEmbedder(base, cfg.CacheSize, m), nil
}

// NewEnhancer builds the configured answer enhancer. An empty provider
// returns (nil, nil): answers are served as written.
func NewEnhancer(ctx context.Context, cfg EnhancerConfig, m *metrics.Metrics) (Enhancer, error) {
	var gen generator
	switch cfg.Provider {
	case "":
		return nil, nil //nolint:nilnil // enhancer disabled
	case ProviderGemini:
		g, err := newGeminiGenerator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	case ProviderOpenAI:
		g, err := newOpenAIGenerator(cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		return nil, fmt.Errorf("unsupported enhancer provider: %s", cfg.Provider)
	}
	return newAnswerEnhancer(gen, cfg, m), nil
}
