package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiEmbedder embeds text with the Gemini embedding API.
type geminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int32
	timeout    time.Duration
	retry      RetryConfig
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func newGeminiEmbedder(ctx context.Context, cfg EmbeddingConfig) (*geminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedder: API key is required")
	}
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &geminiEmbedder{
		client:     client,
		model:      model,
		dimensions: int32(dims),
		timeout:    cfg.RequestTimeout,
		retry:      cfg.Retry,
	}, nil
}

// Embed implements Embedder.
func (e *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(e.dimensions),
	}

	var values []float32
	err := WithRetry(ctx, e.retry, func(attempt int, err error) {
		slog.DebugContext(ctx, "retrying embedding request",
			"provider", ProviderGemini, "model", e.model, "attempt", attempt, "error", err)
	}, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.Models.EmbedContent(callCtx, e.model, genai.Text(text), config)
		if err != nil {
			return WrapError(err, ProviderGemini, 0)
		}
		if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return WrapError(errors.New("empty embedding response"), ProviderGemini, 0)
		}
		values = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Provider implements Embedder.
func (e *geminiEmbedder) Provider() Provider { return ProviderGemini }

// geminiGenerator produces enhanced answers with a Gemini chat model.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func newGeminiGenerator(ctx context.Context, cfg EnhancerConfig) (*geminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini enhancer: API key is required")
	}
	client, err := newGeminiClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiEnhancerModel
	}
	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) generate(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](EnhancerTemperature),
		MaxOutputTokens:   EnhancerMaxTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return "", WrapError(fmt.Errorf("generate content failed: %w", err), ProviderGemini, 0)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.WriteString(part.Text)
		}
	}
	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "answer enhancement completed",
			"provider", ProviderGemini,
			"model", g.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	return out.String(), nil
}

func (g *geminiGenerator) provider() Provider { return ProviderGemini }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
