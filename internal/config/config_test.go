package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvFAQPath, "testdata/faqs.json")
	t.Setenv(EnvEmbeddingProvider, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.Match.GateMaxWords != 20 || cfg.Match.GateMinWords != 2 {
		t.Errorf("Expected gate thresholds 20/2, got %d/%d", cfg.Match.GateMaxWords, cfg.Match.GateMinWords)
	}
	if cfg.Match.SemanticStrict != 0.5 || cfg.Match.SemanticRelaxed != 0.3 || cfg.Match.FuzzyThreshold != 0.3 {
		t.Errorf("Unexpected thresholds: %+v", cfg.Match)
	}
	if cfg.Match.ExactFuzzyMaxDist != 0.45 {
		t.Errorf("Expected exact fuzzy distance 0.45, got %v", cfg.Match.ExactFuzzyMaxDist)
	}
	if cfg.Session.Window != 5 {
		t.Errorf("Expected window 5, got %d", cfg.Session.Window)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Expected session TTL 30m, got %v", cfg.Session.TTL)
	}
	if cfg.EmbeddingProvider != ProviderLocal {
		t.Errorf("Expected local embeddings by default, got %s", cfg.EmbeddingProvider)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvFAQPath, "faqs.yaml")
	t.Setenv(EnvGateMaxWords, "30")
	t.Setenv(EnvStageTimeout, "750ms")
	t.Setenv(EnvCORSOrigins, "https://ezhishi.example, ,https://admin.example")
	t.Setenv(EnvFAQWatch, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Match.GateMaxWords != 30 {
		t.Errorf("Expected GateMaxWords 30, got %d", cfg.Match.GateMaxWords)
	}
	if cfg.Match.StageTimeout != 750*time.Millisecond {
		t.Errorf("Expected stage timeout 750ms, got %v", cfg.Match.StageTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("Expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
	if !cfg.FAQWatch {
		t.Error("Expected FAQWatch to be true")
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv(EnvFAQPath, "faqs.json")
	t.Setenv(EnvSessionWindow, "five")
	t.Setenv(EnvSessionTTL, "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Session.Window != 5 {
		t.Errorf("Expected default window 5, got %d", cfg.Session.Window)
	}
	if cfg.Session.TTL != SessionTTLDefault {
		t.Errorf("Expected default TTL, got %v", cfg.Session.TTL)
	}
}

func validConfig() *Config {
	return &Config{
		Port:                  "10000",
		DataDir:               "/data",
		ChatLogEnabled:        true,
		FAQPath:               "data/faqs.json",
		EmbeddingProvider:     ProviderLocal,
		RateLimitBurst:        20,
		RateLimitRefillPerSec: 1,
		SentrySampleRate:      1,
		Match: MatchConfig{
			GateMaxWords:      20,
			GateMinWords:      2,
			StageTimeout:      StageDefault,
			SemanticStrict:    0.5,
			SemanticRelaxed:   0.3,
			FuzzyThreshold:    0.3,
			ExactFuzzyMaxDist: 0.45,
			MaxQueryRunes:     500,
		},
		Session: SessionConfig{
			Store:           SessionStoreMemory,
			TTL:             SessionTTLDefault,
			Window:          5,
			CleanupInterval: SessionCleanupDefault,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing faq source", func(c *Config) { c.FAQPath = "" }, "FAQ_PATH or FAQ_REMOTE_KEY"},
		{"remote key without r2", func(c *Config) { c.FAQRemoteKey = "faqs.json" }, "FAQ_REMOTE_KEY requires"},
		{"gemini without key", func(c *Config) { c.EmbeddingProvider = ProviderGemini }, "GEMINI_API_KEY"},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "bert" }, "unknown EMBEDDING_PROVIDER"},
		{"unknown enhancer", func(c *Config) { c.EnhancerProvider = "claude" }, "unknown ENHANCER_PROVIDER"},
		{"relaxed above strict", func(c *Config) { c.Match.SemanticRelaxed = 0.8 }, "cannot exceed"},
		{"threshold out of range", func(c *Config) { c.Match.FuzzyThreshold = 1.5 }, "FUZZY_THRESHOLD"},
		{"gate inverted", func(c *Config) { c.Match.GateMaxWords = 1 }, "GATE_MAX_WORDS"},
		{"redis without addr", func(c *Config) { c.Session.Store = SessionStoreRedis }, "REDIS_ADDR"},
		{"zero window", func(c *Config) { c.Session.Window = 0 }, "SESSION_WINDOW"},
		{"unknown store", func(c *Config) { c.Session.Store = "etcd" }, "unknown SESSION_STORE"},
		{"negative retention", func(c *Config) { c.ChatLogRetain = -time.Hour }, "CHATLOG_RETENTION"},
		{"negative warmup", func(c *Config) { c.WarmupQuestions = -1 }, "WARMUP_QUESTIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = ""
	cfg.RateLimitBurst = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "PORT") || !strings.Contains(err.Error(), "RATE_LIMIT_BURST") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/ezhishi"}
	if got := cfg.SQLitePath(); got != "/var/lib/ezhishi/chatlog.db" {
		t.Errorf("SQLitePath() = %s", got)
	}
}
