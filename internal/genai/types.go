// Package genai provides the externally supplied language capabilities:
// text embeddings for semantic FAQ search and an optional answer enhancer.
//
// Providers:
//   - Gemini uses google.golang.org/genai (official SDK)
//   - OpenAI-compatible endpoints (OpenAI, OpenRouter) use github.com/openai/openai-go/v3
//   - Local is a deterministic hashing embedder that needs no network
package genai

import (
	"context"
	"time"
)

// Provider identifies an embedding or generation backend.
type Provider string

const (
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is any OpenAI-compatible API, selected by base URL.
	ProviderOpenAI Provider = "openai"
	// ProviderLocal is the in-process hashing embedder.
	ProviderLocal Provider = "local"
)

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
}

// Enhancer rewrites a FAQ answer for the user's question.
type Enhancer interface {
	// Enhance returns the rewritten answer. On failure it returns the
	// original answer together with the error.
	Enhance(ctx context.Context, question, answer string) (string, error)
	Provider() Provider
}

// RetryConfig defines retry behavior for provider calls.
type RetryConfig struct {
	MaxAttempts  int           // including the initial attempt
	InitialDelay time.Duration // base delay before the first retry
	MaxDelay     time.Duration // cap on a single delay
}

// Retry configuration defaults.
const (
	DefaultMaxRetryAttempts  = 3
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 5 * time.Second
)

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// Model defaults.
const (
	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
	DefaultGeminiEnhancerModel  = "gemini-2.5-flash"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAIEnhancerModel  = "deepseek/deepseek-chat-v3-0324:free"

	// DefaultDimensions is requested from remote providers and used by the
	// local embedder.
	DefaultDimensions = 768
	LocalDimensions   = 256
)

// Enhancer generation parameters.
const (
	EnhancerTemperature = 0.7
	EnhancerMaxTokens   = 500
)

// EmbeddingConfig selects and configures an embedding provider.
type EmbeddingConfig struct {
	Provider       Provider
	APIKey         string
	BaseURL        string // OpenAI-compatible only; empty = api.openai.com
	Model          string
	Dimensions     int
	RequestTimeout time.Duration
	Retry          RetryConfig
	CacheSize      int // 0 = DefaultCacheSize
}

// EnhancerConfig selects and configures the answer enhancer.
type EnhancerConfig struct {
	Provider       Provider
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}
