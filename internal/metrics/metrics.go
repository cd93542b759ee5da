// Package metrics defines the Prometheus metrics exported on /metrics.
// Every Record method is safe to call on a nil *Metrics so components can
// run without a registry in tests and in the CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	ResolutionsTotal      *prometheus.CounterVec
	ResolveDuration       prometheus.Histogram
	StageDurationSeconds  *prometheus.HistogramVec
	StageErrorsTotal      *prometheus.CounterVec
	GateRejectionsTotal   prometheus.Counter
	FollowUpRewritesTotal prometheus.Counter

	// Embedding metrics
	EmbeddingRequestsTotal *prometheus.CounterVec
	EmbeddingDuration      *prometheus.HistogramVec
	EmbeddingCacheTotal    *prometheus.CounterVec
	EnhancerRequestsTotal  *prometheus.CounterVec

	// FAQ index metrics
	FAQIndexEntries   prometheus.Gauge
	FAQIndexEmbedded  prometheus.Gauge
	FAQReloadsTotal   *prometheus.CounterVec
	FAQIndexBuildTime prometheus.Histogram

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsEvictedTotal *prometheus.CounterVec
	SessionStoreErrors   *prometheus.CounterVec

	// Chat log metrics
	ChatLogWritesTotal  *prometheus.CounterVec
	ChatLogDroppedTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterActive  *prometheus.GaugeVec

	// Background job metrics
	JobDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	m := &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_pipeline_resolutions_total",
				Help: "Total number of resolved queries by winning match type",
			},
			[]string{"match_type"}, // rule, exact, alternate, chinese, semantic, fuzzy, fallback, small_talk, greeting
		),

		ResolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ezhishi_pipeline_resolve_duration_seconds",
				Help:    "End-to-end resolve duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),

		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ezhishi_stage_duration_seconds",
				Help:    "Per-stage duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
			},
			[]string{"stage"},
		),

		StageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_stage_errors_total",
				Help: "Stage failures by stage and kind",
			},
			[]string{"stage", "kind"}, // kind: error, panic, timeout
		),

		GateRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ezhishi_gate_rejections_total",
				Help: "Queries rejected by the relevance gate",
			},
		),

		FollowUpRewritesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ezhishi_followup_rewrites_total",
				Help: "Queries combined with the previous turn before matching",
			},
		),

		EmbeddingRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_embedding_requests_total",
				Help: "Embedding provider calls by provider and status",
			},
			[]string{"provider", "status"}, // status: success, error
		),

		EmbeddingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ezhishi_embedding_duration_seconds",
				Help:    "Embedding provider call duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),

		EmbeddingCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_embedding_cache_total",
				Help: "Embedding cache lookups by result",
			},
			[]string{"result"}, // hit, miss, shared
		),

		EnhancerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_enhancer_requests_total",
				Help: "Answer enhancer calls by provider and status",
			},
			[]string{"provider", "status"},
		),

		FAQIndexEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ezhishi_faq_index_entries",
				Help: "FAQ entries in the active index",
			},
		),

		FAQIndexEmbedded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ezhishi_faq_index_embedded_entries",
				Help: "FAQ entries with an embedding in the active index",
			},
		),

		FAQReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_faq_reloads_total",
				Help: "FAQ index rebuilds by trigger and status",
			},
			[]string{"trigger", "status"}, // trigger: startup, file, remote
		),

		FAQIndexBuildTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ezhishi_faq_index_build_seconds",
				Help:    "Time to build the FAQ index including embeddings",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ezhishi_sessions_active",
				Help: "Conversation sessions currently held",
			},
		),

		SessionsEvictedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_sessions_evicted_total",
				Help: "Sessions removed by reason",
			},
			[]string{"reason"}, // ttl, capacity, ended
		),

		SessionStoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_session_store_errors_total",
				Help: "Session store failures by operation",
			},
			[]string{"operation"},
		),

		ChatLogWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_chatlog_writes_total",
				Help: "Chat log writes by kind and status",
			},
			[]string{"kind", "status"}, // kind: message, analytics, session_end
		),

		ChatLogDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ezhishi_chatlog_dropped_total",
				Help: "Chat log writes dropped because the queue was full",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_http_requests_total",
				Help: "HTTP requests by route template and status code",
			},
			[]string{"route", "status"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezhishi_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter"},
		),

		RateLimiterActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ezhishi_rate_limiter_active_keys",
				Help: "Clients currently tracked by a keyed rate limiter",
			},
			[]string{"limiter"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ezhishi_job_duration_seconds",
				Help:    "Background job run duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"job"}, // warmup, chatlog_retention
		),
	}

	return m
}

// RecordResolution records the winning match type and total duration of a resolve.
func (m *Metrics) RecordResolution(matchType string, seconds float64) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(matchType).Inc()
	m.ResolveDuration.Observe(seconds)
}

// RecordStage records a stage's duration.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordStageError records a stage failure. kind is error, panic or timeout.
func (m *Metrics) RecordStageError(stage, kind string) {
	if m == nil {
		return
	}
	m.StageErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordGateRejection records a query rejected by the relevance gate.
func (m *Metrics) RecordGateRejection() {
	if m == nil {
		return
	}
	m.GateRejectionsTotal.Inc()
}

// RecordFollowUpRewrite records a query merged with the previous turn.
func (m *Metrics) RecordFollowUpRewrite() {
	if m == nil {
		return
	}
	m.FollowUpRewritesTotal.Inc()
}

// RecordEmbedding records an embedding provider call.
func (m *Metrics) RecordEmbedding(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.EmbeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	m.EmbeddingDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordEmbeddingCache records an embedding cache lookup.
func (m *Metrics) RecordEmbeddingCache(result string) {
	if m == nil {
		return
	}
	m.EmbeddingCacheTotal.WithLabelValues(result).Inc()
}

// RecordEnhancer records an answer enhancer call.
func (m *Metrics) RecordEnhancer(provider, status string) {
	if m == nil {
		return
	}
	m.EnhancerRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordFAQIndex records a rebuilt index.
func (m *Metrics) RecordFAQIndex(entries, embedded int, seconds float64) {
	if m == nil {
		return
	}
	m.FAQIndexEntries.Set(float64(entries))
	m.FAQIndexEmbedded.Set(float64(embedded))
	m.FAQIndexBuildTime.Observe(seconds)
}

// RecordFAQReload records an index rebuild attempt.
func (m *Metrics) RecordFAQReload(trigger, status string) {
	if m == nil {
		return
	}
	m.FAQReloadsTotal.WithLabelValues(trigger, status).Inc()
}

// SetActiveSessions sets the active session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordSessionEvicted records removed sessions.
func (m *Metrics) RecordSessionEvicted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsEvictedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordSessionStoreError records a session store failure.
func (m *Metrics) RecordSessionStoreError(operation string) {
	if m == nil {
		return
	}
	m.SessionStoreErrors.WithLabelValues(operation).Inc()
}

// RecordChatLogWrite records a chat log write.
func (m *Metrics) RecordChatLogWrite(kind, status string) {
	if m == nil {
		return
	}
	m.ChatLogWritesTotal.WithLabelValues(kind, status).Inc()
}

// RecordChatLogDrop records a chat log write dropped on a full queue.
func (m *Metrics) RecordChatLogDrop() {
	if m == nil {
		return
	}
	m.ChatLogDroppedTotal.Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterActive sets the number of clients tracked by limiter.
func (m *Metrics) SetRateLimiterActive(limiter string, n int) {
	if m == nil {
		return
	}
	m.RateLimiterActive.WithLabelValues(limiter).Set(float64(n))
}

// RecordJob records one background job run.
func (m *Metrics) RecordJob(job string, seconds float64) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(job).Observe(seconds)
}

// RegisterLogSink exports the remote log sink's queue on registry:
// ezhishi_log_records_dropped_total and ezhishi_log_records_pending.
func RegisterLogSink(registry prometheus.Registerer, dropped func() uint64, pending func() int) {
	registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "ezhishi_log_records_dropped_total",
			Help: "Log records the remote sink discarded because its queue was full",
		}, func() float64 { return float64(dropped()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ezhishi_log_records_pending",
			Help: "Log records queued for the remote sink",
		}, func() float64 { return float64(pending()) }),
	)
}
