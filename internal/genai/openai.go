package genai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1/"

func newOpenAIClient(apiKey, baseURL string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// openaiEmbedder embeds text through an OpenAI-compatible embeddings API.
type openaiEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	timeout    time.Duration
	retry      RetryConfig
}

func newOpenAIEmbedder(cfg EmbeddingConfig) (*openaiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIEmbeddingModel
	}
	return &openaiEmbedder{
		client:     newOpenAIClient(cfg.APIKey, cfg.BaseURL),
		model:      model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.RequestTimeout,
		retry:      cfg.Retry,
	}, nil
}

// Embed implements Embedder.
func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	var values []float32
	err := WithRetry(ctx, e.retry, func(attempt int, err error) {
		slog.DebugContext(ctx, "retrying embedding request",
			"provider", ProviderOpenAI, "model", e.model, "attempt", attempt, "error", err)
	}, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.Embeddings.New(callCtx, params)
		if err != nil {
			return WrapError(err, ProviderOpenAI, 0)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return WrapError(errors.New("empty embedding response"), ProviderOpenAI, 0)
		}
		values = make([]float32, len(resp.Data[0].Embedding))
		for i, x := range resp.Data[0].Embedding {
			values[i] = float32(x)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Provider implements Embedder.
func (e *openaiEmbedder) Provider() Provider { return ProviderOpenAI }

// openaiGenerator produces enhanced answers with an OpenAI-compatible chat
// model (OpenRouter by default).
type openaiGenerator struct {
	client openai.Client
	model  string
}

func newOpenAIGenerator(cfg EnhancerConfig) (*openaiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai enhancer: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIEnhancerModel
	}
	return &openaiGenerator{client: newOpenAIClient(cfg.APIKey, baseURL), model: model}, nil
}

func (g *openaiGenerator) generate(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(EnhancerTemperature),
		MaxTokens:   openai.Int(EnhancerMaxTokens),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", WrapError(err, ProviderOpenAI, 0)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if resp.Usage.TotalTokens > 0 {
		slog.DebugContext(ctx, "answer enhancement completed",
			"provider", ProviderOpenAI,
			"model", g.model,
			"input_tokens", resp.Usage.PromptTokens,
			"output_tokens", resp.Usage.CompletionTokens)
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *openaiGenerator) provider() Provider { return ProviderOpenAI }
