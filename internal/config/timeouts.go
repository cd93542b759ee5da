// Package config provides centralized timeout constants for the application.
//
// Request-path budgets are sized for an interactive chat widget: a user
// waits on every answer, so no single matching stage may hold a request
// for long, and embedding calls to remote providers are the slowest part.
package config

import "time"

// HTTP server timeouts
const (
	// HTTPReadHeader bounds how long a client may take to send request headers.
	HTTPReadHeader = 5 * time.Second

	// HTTPRead is the server read timeout. Search payloads are tiny.
	HTTPRead = 10 * time.Second

	// HTTPWrite covers a full resolve including remote embedding calls.
	HTTPWrite = 30 * time.Second

	// HTTPIdle is the idle timeout for keep-alive connections.
	HTTPIdle = 120 * time.Second
)

// Pipeline timeouts
const (
	// StageDefault is the per-stage budget. A stage that exceeds it is
	// treated as having found nothing.
	StageDefault = 3 * time.Second

	// ResolveTotal caps an entire resolve, including related questions.
	ResolveTotal = 15 * time.Second
)

// Embedding and LLM timeouts
const (
	// EmbeddingRequest is the timeout for a single embedding API call.
	EmbeddingRequest = 10 * time.Second

	// EmbeddingRetryInitial is the first backoff delay for retryable embedding errors.
	EmbeddingRetryInitial = 500 * time.Millisecond

	// EmbeddingRetryMax caps the backoff delay.
	EmbeddingRetryMax = 5 * time.Second

	// IndexBuild bounds embedding the whole FAQ set at startup or reload.
	IndexBuild = 2 * time.Minute

	// EnhancerRequest bounds a single answer rewrite.
	EnhancerRequest = 8 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is how long SQLite waits for a lock before failing.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime recycles pooled connections.
	DatabaseConnMaxLifetime = time.Hour

	// ChatLogWrite bounds a single asynchronous chat log write.
	ChatLogWrite = 5 * time.Second
)

// Background job intervals
const (
	// SessionCleanupDefault is how often idle sessions are swept.
	SessionCleanupDefault = time.Minute

	// SessionTTLDefault is how long a session may stay idle before eviction.
	SessionTTLDefault = 30 * time.Minute

	// FAQRemotePollDefault is how often the remote FAQ object's ETag is checked.
	FAQRemotePollDefault = 5 * time.Minute

	// FAQWatchDebounce coalesces bursts of file events into one reload.
	FAQWatchDebounce = 500 * time.Millisecond

	// RateLimiterCleanup is how often idle per-client buckets are removed.
	RateLimiterCleanup = 5 * time.Minute

	// ChatLogRetentionDefault is how long chat sessions are kept.
	ChatLogRetentionDefault = 90 * 24 * time.Hour

	// ChatLogRetentionInterval is how often expired chat sessions are purged.
	ChatLogRetentionInterval = 24 * time.Hour

	// WarmupGraceDefault bounds how long /readyz waits for the cache warmup.
	WarmupGraceDefault = 2 * time.Minute

	// Warmup bounds the whole embedding cache warmup.
	Warmup = 10 * time.Minute

	// ReadinessCheck bounds the dependency pings behind /readyz.
	ReadinessCheck = 3 * time.Second

	// MetricsUpdate is how often session gauges are refreshed from the store.
	MetricsUpdate = time.Minute
)
