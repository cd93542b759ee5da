// Package config provides application configuration management.
// It loads settings from environment variables (optionally seeded from a
// .env file) and applies defaults for the FAQ source, matching thresholds,
// sessions, providers and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderNone   = "none"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServiceName     string
	InstanceID      string
	CORSOrigins     []string // empty = same-origin only

	// Data Configuration
	DataDir        string        // Directory for the chat log SQLite database
	ChatLogEnabled bool          // Persist chat turns and question analytics
	ChatLogBuffer  int           // Pending chat log writes before new ones are dropped
	ChatLogRetain  time.Duration // Sessions idle longer than this are purged (0 = keep forever)

	// Embedding cache warmup
	WarmupGracePeriod time.Duration // /readyz reports ready after this even if warmup is still running
	WarmupQuestions   int           // Most asked questions to pre-embed (0 = disabled)

	// FAQ Source
	FAQPath       string        // Local JSON or YAML file
	FAQWatch      bool          // Reload FAQPath when it changes on disk
	FAQRemoteKey  string        // Object key in the R2 bucket; overrides FAQPath when set
	FAQRemotePoll time.Duration // ETag poll interval for FAQRemoteKey
	R2            R2Config

	// Matching thresholds and budgets
	Match MatchConfig

	// Embedding Configuration
	EmbeddingProvider    string // gemini, openai, local or none
	GeminiAPIKey         string
	GeminiEmbeddingModel string // empty = genai package default
	OpenAIAPIKey         string
	OpenAIBaseURL        string // OpenAI-compatible endpoint (e.g. OpenRouter)
	OpenAIEmbeddingModel string

	// Answer Enhancer Configuration (empty provider = disabled)
	EnhancerProvider string
	EnhancerModel    string

	// Session Configuration
	Session SessionConfig

	// Rate Limits (Token Bucket per client IP)
	RateLimitBurst        float64
	RateLimitRefillPerSec float64

	// Metrics Authentication
	MetricsUsername string // Username for /metrics Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics Basic Auth (empty = no auth)

	// Error tracking and log shipping
	SentryDSN           string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string
	BetterStackLevel    string // empty = LogLevel
}

// R2Config holds S3-compatible object storage settings for the remote FAQ source.
type R2Config struct {
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	BucketName  string
}

// MatchConfig holds the resolution pipeline's tunables.
type MatchConfig struct {
	GateMaxWords      int           // Longer queries need a keyword or question shape
	GateMinWords      int           // Queries this short need a keyword or question shape
	StageTimeout      time.Duration // Budget per stage
	SemanticStrict    float64       // Strict semantic stage threshold
	SemanticRelaxed   float64       // Relaxed semantic stage threshold
	FuzzyThreshold    float64       // Fuzzy/keyword similarity threshold
	ExactFuzzyMaxDist float64       // Exact matcher fuzzy fallback distance
	MaxQueryRunes     int           // Longer queries are rejected as invalid input
}

// SessionConfig holds conversation context settings.
type SessionConfig struct {
	Store           string // memory or redis
	TTL             time.Duration
	Window          int // Turns retained per session
	CleanupInterval time.Duration
	MaxSessions     int // 0 = unbounded (memory store only)
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),
		ServiceName:     getEnv(EnvServiceName, "ezhishi-chatbot"),
		InstanceID:      getEnv(EnvInstanceID, ""),
		CORSOrigins:     getListEnv(EnvCORSOrigins),

		DataDir:        getEnv(EnvDataDir, getDefaultDataDir()),
		ChatLogEnabled: getBoolEnv(EnvChatLogEnabled, true),
		ChatLogBuffer:  getIntEnv(EnvChatLogBuffer, 1024),
		ChatLogRetain:  getDurationEnv(EnvChatLogRetention, ChatLogRetentionDefault),

		WarmupGracePeriod: getDurationEnv(EnvWarmupGracePeriod, WarmupGraceDefault),
		WarmupQuestions:   getIntEnv(EnvWarmupQuestions, 200),

		FAQPath:       getEnv(EnvFAQPath, "data/faqs.json"),
		FAQWatch:      getBoolEnv(EnvFAQWatch, false),
		FAQRemoteKey:  getEnv(EnvFAQRemoteKey, ""),
		FAQRemotePoll: getDurationEnv(EnvFAQRemotePoll, FAQRemotePollDefault),
		R2: R2Config{
			Endpoint:    getEnv(EnvR2Endpoint, ""),
			AccessKeyID: getEnv(EnvR2AccessKeyID, ""),
			SecretKey:   getEnv(EnvR2SecretKey, ""),
			BucketName:  getEnv(EnvR2BucketName, ""),
		},

		Match: MatchConfig{
			GateMaxWords:      getIntEnv(EnvGateMaxWords, 20),
			GateMinWords:      getIntEnv(EnvGateMinWords, 2),
			StageTimeout:      getDurationEnv(EnvStageTimeout, StageDefault),
			SemanticStrict:    getFloatEnv(EnvSemanticStrict, 0.5),
			SemanticRelaxed:   getFloatEnv(EnvSemanticRelaxed, 0.3),
			FuzzyThreshold:    getFloatEnv(EnvFuzzyThreshold, 0.3),
			ExactFuzzyMaxDist: getFloatEnv(EnvExactFuzzyMaxDist, 0.45),
			MaxQueryRunes:     getIntEnv(EnvMaxQueryRunes, 500),
		},

		EmbeddingProvider:    strings.ToLower(getEnv(EnvEmbeddingProvider, ProviderLocal)),
		GeminiAPIKey:         getEnv(EnvGeminiAPIKey, ""),
		GeminiEmbeddingModel: getEnv(EnvGeminiEmbeddingModel, ""),
		OpenAIAPIKey:         getEnv(EnvOpenAIAPIKey, ""),
		OpenAIBaseURL:        getEnv(EnvOpenAIBaseURL, ""),
		OpenAIEmbeddingModel: getEnv(EnvOpenAIEmbeddingModel, ""),

		EnhancerProvider: strings.ToLower(getEnv(EnvEnhancerProvider, "")),
		EnhancerModel:    getEnv(EnvEnhancerModel, ""),

		Session: SessionConfig{
			Store:           strings.ToLower(getEnv(EnvSessionStore, SessionStoreMemory)),
			TTL:             getDurationEnv(EnvSessionTTL, SessionTTLDefault),
			Window:          getIntEnv(EnvSessionWindow, 5),
			CleanupInterval: getDurationEnv(EnvSessionCleanupInterval, SessionCleanupDefault),
			MaxSessions:     getIntEnv(EnvSessionMax, 0),
			RedisAddr:       getEnv(EnvRedisAddr, "localhost:6379"),
			RedisPassword:   getEnv(EnvRedisPassword, ""),
			RedisDB:         getIntEnv(EnvRedisDB, 0),
			RedisPrefix:     getEnv(EnvRedisPrefix, "ezhishi:session:"),
		},

		RateLimitBurst:        getFloatEnv(EnvRateLimitBurst, 20),
		RateLimitRefillPerSec: getFloatEnv(EnvRateLimitRefill, 1),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryDSN:           getEnv(EnvSentryDSN, ""),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:    getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
		BetterStackLevel:    getEnv(EnvBetterStackLevel, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.DataDir == "" && c.ChatLogEnabled {
		errs = append(errs, errors.New("DATA_DIR is required when chat logging is enabled"))
	}
	if c.FAQPath == "" && c.FAQRemoteKey == "" {
		errs = append(errs, errors.New("one of FAQ_PATH or FAQ_REMOTE_KEY is required"))
	}
	if c.FAQRemoteKey != "" && !c.HasR2() {
		errs = append(errs, errors.New("FAQ_REMOTE_KEY requires R2_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME"))
	}
	if err := c.Match.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("match config: %w", err))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session config: %w", err))
	}

	switch c.EmbeddingProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("EMBEDDING_PROVIDER=gemini requires GEMINI_API_KEY"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY"))
		}
	case ProviderLocal, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}

	switch c.EnhancerProvider {
	case "", ProviderNone:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("ENHANCER_PROVIDER=gemini requires GEMINI_API_KEY"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("ENHANCER_PROVIDER=openai requires OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ENHANCER_PROVIDER %q", c.EnhancerProvider))
	}

	if c.ChatLogRetain < 0 {
		errs = append(errs, fmt.Errorf("CHATLOG_RETENTION cannot be negative, got %v", c.ChatLogRetain))
	}
	if c.WarmupQuestions < 0 {
		errs = append(errs, fmt.Errorf("WARMUP_QUESTIONS cannot be negative, got %d", c.WarmupQuestions))
	}

	if c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be positive, got %v", c.RateLimitBurst))
	}
	if c.RateLimitRefillPerSec <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REFILL_PER_SEC must be positive, got %v", c.RateLimitRefillPerSec))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("SENTRY_SAMPLE_RATE must be within [0,1], got %v", c.SentrySampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the matching thresholds.
func (m MatchConfig) Validate() error {
	var errs []error
	if m.GateMinWords < 0 || m.GateMaxWords <= m.GateMinWords {
		errs = append(errs, fmt.Errorf("GATE_MAX_WORDS (%d) must exceed GATE_MIN_WORDS (%d)", m.GateMaxWords, m.GateMinWords))
	}
	if m.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STAGE_TIMEOUT must be positive, got %v", m.StageTimeout))
	}
	for name, v := range map[string]float64{
		EnvSemanticStrict:    m.SemanticStrict,
		EnvSemanticRelaxed:   m.SemanticRelaxed,
		EnvFuzzyThreshold:    m.FuzzyThreshold,
		EnvExactFuzzyMaxDist: m.ExactFuzzyMaxDist,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if m.SemanticRelaxed > m.SemanticStrict {
		errs = append(errs, fmt.Errorf("SEMANTIC_RELAXED (%v) cannot exceed SEMANTIC_STRICT (%v)", m.SemanticRelaxed, m.SemanticStrict))
	}
	if m.MaxQueryRunes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_QUERY_RUNES must be positive, got %d", m.MaxQueryRunes))
	}
	return errors.Join(errs...)
}

// Validate checks the session settings.
func (s SessionConfig) Validate() error {
	var errs []error
	switch s.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if s.RedisAddr == "" {
			errs = append(errs, errors.New("SESSION_STORE=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", s.Store))
	}
	if s.TTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %v", s.TTL))
	}
	if s.Window <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_WINDOW must be positive, got %d", s.Window))
	}
	if s.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive, got %v", s.CleanupInterval))
	}
	if s.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX cannot be negative, got %d", s.MaxSessions))
	}
	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blanks.
func getListEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the chat log database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "chatlog.db")
}

// HasR2 reports whether object storage credentials are complete.
func (c *Config) HasR2() bool {
	return c.R2.Endpoint != "" && c.R2.AccessKeyID != "" && c.R2.SecretKey != "" && c.R2.BucketName != ""
}

// HasRemoteEmbeddings reports whether embeddings come from a network provider.
func (c *Config) HasRemoteEmbeddings() bool {
	return c.EmbeddingProvider == ProviderGemini || c.EmbeddingProvider == ProviderOpenAI
}
