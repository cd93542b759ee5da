// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvServiceName     = "SERVICE_NAME"
	EnvInstanceID      = "INSTANCE_ID"
	EnvCORSOrigins     = "CORS_ALLOWED_ORIGINS"

	// Data
	EnvDataDir          = "DATA_DIR"
	EnvChatLogEnabled   = "CHATLOG_ENABLED"
	EnvChatLogBuffer    = "CHATLOG_BUFFER"
	EnvChatLogRetention = "CHATLOG_RETENTION"

	// Warmup
	EnvWarmupGracePeriod = "WARMUP_GRACE_PERIOD"
	EnvWarmupQuestions   = "WARMUP_QUESTIONS"

	// FAQ Source
	EnvFAQPath       = "FAQ_PATH"
	EnvFAQWatch      = "FAQ_WATCH"
	EnvFAQRemoteKey  = "FAQ_REMOTE_KEY"
	EnvFAQRemotePoll = "FAQ_REMOTE_POLL"
	EnvR2Endpoint    = "R2_ENDPOINT"
	EnvR2AccessKeyID = "R2_ACCESS_KEY_ID"
	EnvR2SecretKey   = "R2_SECRET_ACCESS_KEY"
	EnvR2BucketName  = "R2_BUCKET_NAME"

	// Matching
	EnvGateMaxWords      = "GATE_MAX_WORDS"
	EnvGateMinWords      = "GATE_MIN_WORDS"
	EnvStageTimeout      = "STAGE_TIMEOUT"
	EnvSemanticStrict    = "SEMANTIC_STRICT"
	EnvSemanticRelaxed   = "SEMANTIC_RELAXED"
	EnvFuzzyThreshold    = "FUZZY_THRESHOLD"
	EnvExactFuzzyMaxDist = "EXACT_FUZZY_MAX_DISTANCE"
	EnvMaxQueryRunes     = "MAX_QUERY_RUNES"

	// Embeddings
	EnvEmbeddingProvider    = "EMBEDDING_PROVIDER"
	EnvGeminiAPIKey         = "GEMINI_API_KEY"
	EnvGeminiEmbeddingModel = "GEMINI_EMBEDDING_MODEL"
	EnvOpenAIAPIKey         = "OPENAI_API_KEY"
	EnvOpenAIBaseURL        = "OPENAI_BASE_URL"
	EnvOpenAIEmbeddingModel = "OPENAI_EMBEDDING_MODEL"

	// Answer Enhancer
	EnvEnhancerProvider = "ENHANCER_PROVIDER"
	EnvEnhancerModel    = "ENHANCER_MODEL"

	// Sessions
	EnvSessionStore           = "SESSION_STORE"
	EnvSessionTTL             = "SESSION_TTL"
	EnvSessionWindow          = "SESSION_WINDOW"
	EnvSessionCleanupInterval = "SESSION_CLEANUP_INTERVAL"
	EnvSessionMax             = "SESSION_MAX"
	EnvRedisAddr              = "REDIS_ADDR"
	EnvRedisPassword          = "REDIS_PASSWORD"
	EnvRedisDB                = "REDIS_DB"
	EnvRedisPrefix            = "REDIS_PREFIX"

	// Rate Limits
	EnvRateLimitBurst  = "RATE_LIMIT_BURST"
	EnvRateLimitRefill = "RATE_LIMIT_REFILL_PER_SEC"

	// Metrics
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"

	// Sentry
	EnvSentryDSN         = "SENTRY_DSN"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"
	EnvBetterStackLevel    = "BETTERSTACK_LEVEL"
)
