// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/melonneet/ezhishi-chatbot/internal/config"
	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/genai"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/pipeline"
	"github.com/melonneet/ezhishi-chatbot/internal/r2client"
	"github.com/melonneet/ezhishi-chatbot/internal/ratelimit"
	"github.com/melonneet/ezhishi-chatbot/internal/segment"
	"github.com/melonneet/ezhishi-chatbot/internal/sentry"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
	"github.com/melonneet/ezhishi-chatbot/internal/warmup"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg       *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	db        *storage.DB         // nil when chat logging is disabled
	chatlog   *storage.ChatLogger // nil when chat logging is disabled
	holder    *faq.Holder
	sessions  *convo.Manager
	embedder  faq.Embedder // nil when semantic search is disabled
	pipeline  *pipeline.Pipeline
	limiter   *ratelimit.KeyedLimiter
	readiness *warmup.ReadinessState
	server    *http.Server
	wg        sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
// It fails when the FAQ source cannot be loaded: the service has nothing to
// answer with.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
		BetterStackLevel:    cfg.BetterStackLevel,
	})

	log = log.WithField("service", cfg.ServiceName)
	instanceID := cfg.InstanceID
	if instanceID == "" {
		if host, err := os.Hostname(); err == nil {
			instanceID = host
		}
	}
	if instanceID != "" {
		log = log.WithField("instance_id", instanceID)
	}

	// Set as default logger so package-level slog.*Context() calls pick up
	// session and request ids through ContextHandler.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).
			WithField("level", cfg.BetterStackLevel).
			Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		ServerName:  instanceID,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Error tracking disabled")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)
	metrics.RegisterLogSink(registry, log.DroppedRemote, log.PendingRemote)

	seg := segment.NewDictionary(log.WithModule("segment"))
	if err := seg.Load(); err != nil {
		log.WithError(err).Warn("Chinese dictionary failed to load")
	}

	embedder, err := newEmbedder(ctx, cfg, seg, m)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if embedder != nil {
		log.WithField("provider", cfg.EmbeddingProvider).Info("Semantic search enabled")
	}

	source, err := newFAQSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("faq source: %w", err)
	}
	holder := faq.NewHolder(source, faq.Options{
		Segmenter: seg,
		Embedder:  embedder,
		Logger:    log.WithModule("faq"),
	}, m, log.WithModule("faq"))

	buildCtx, cancel := context.WithTimeout(ctx, config.IndexBuild)
	err = holder.Reload(buildCtx, "startup")
	cancel()
	if err != nil {
		return nil, fmt.Errorf("faq index: %w", err)
	}

	store, err := newSessionStore(ctx, cfg, m)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	sessions := convo.NewManager(store, cfg.Session.Window, log.WithModule("convo"))

	app := &Application{
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		registry:  registry,
		holder:    holder,
		sessions:  sessions,
		embedder:  embedder,
		readiness: warmup.NewReadinessState(cfg.WarmupGracePeriod),
	}

	pcfg := pipeline.Config{
		Match:    cfg.Match,
		Holder:   holder,
		Sessions: sessions,
		Embedder: embedder,
		Metrics:  m,
		Logger:   log,
	}

	if cfg.ChatLogEnabled {
		db, err := storage.New(ctx, cfg.SQLitePath())
		if err != nil {
			_ = sessions.Close()
			return nil, fmt.Errorf("database: %w", err)
		}
		log.WithField("path", cfg.SQLitePath()).Info("Chat log database connected")
		app.db = db
		app.chatlog = storage.NewChatLogger(db, storage.ChatLogOptions{
			BufferSize:   cfg.ChatLogBuffer,
			WriteTimeout: config.ChatLogWrite,
			Metrics:      m,
			Logger:       log.WithModule("chatlog"),
		})
		pcfg.ChatLog = app.chatlog
	}

	enhancerProvider := genai.Provider(cfg.EnhancerProvider)
	if cfg.EnhancerProvider == config.ProviderNone {
		enhancerProvider = ""
	}
	enhancer, err := genai.NewEnhancer(ctx, genai.EnhancerConfig{
		Provider:       enhancerProvider,
		APIKey:         enhancerKey(cfg),
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.EnhancerModel,
		RequestTimeout: config.EnhancerRequest,
	}, m)
	if err != nil {
		log.WithError(err).Warn("Answer enhancer initialization failed")
	} else if enhancer != nil {
		pcfg.Enhancer = enhancer
		log.WithField("provider", cfg.EnhancerProvider).Info("Answer enhancer enabled")
	}

	app.pipeline = pipeline.New(pcfg)
	app.limiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "search",
		Burst:         cfg.RateLimitBurst,
		RefillRate:    cfg.RateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanup,
		Metrics:       m,
	})

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gzhttp.GzipHandler(app.router()),
		ReadHeaderTimeout: config.HTTPReadHeader,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("faqs", holder.Load().Len()).Info("Initialization complete")
	return app, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config, seg segment.Segmenter, m *metrics.Metrics) (faq.Embedder, error) {
	ec := genai.EmbeddingConfig{
		RequestTimeout: config.EmbeddingRequest,
		Retry: genai.RetryConfig{
			MaxAttempts:  genai.DefaultMaxRetryAttempts,
			InitialDelay: config.EmbeddingRetryInitial,
			MaxDelay:     config.EmbeddingRetryMax,
		},
	}
	switch cfg.EmbeddingProvider {
	case config.ProviderNone, "":
		return nil, nil //nolint:nilnil // semantic search disabled
	case config.ProviderGemini:
		ec.Provider = genai.ProviderGemini
		ec.APIKey = cfg.GeminiAPIKey
		ec.Model = cfg.GeminiEmbeddingModel
	case config.ProviderOpenAI:
		ec.Provider = genai.ProviderOpenAI
		ec.APIKey = cfg.OpenAIAPIKey
		ec.BaseURL = cfg.OpenAIBaseURL
		ec.Model = cfg.OpenAIEmbeddingModel
	default:
		ec.Provider = genai.ProviderLocal
	}

	e, err := genai.NewEmbedder(ctx, ec, seg, m)
	if err != nil || e == nil {
		return nil, err
	}
	return e, nil
}

func enhancerKey(cfg *config.Config) string {
	if cfg.EnhancerProvider == config.ProviderGemini {
		return cfg.GeminiAPIKey
	}
	return cfg.OpenAIAPIKey
}

func newFAQSource(ctx context.Context, cfg *config.Config) (faq.Source, error) {
	if cfg.FAQRemoteKey == "" {
		return faq.FileSource{Path: cfg.FAQPath}, nil
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2.Endpoint,
		AccessKeyID: cfg.R2.AccessKeyID,
		SecretKey:   cfg.R2.SecretKey,
		BucketName:  cfg.R2.BucketName,
	})
	if err != nil {
		return nil, err
	}
	return faq.NewRemoteSource(client, cfg.FAQRemoteKey), nil
}

func newSessionStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (convo.SessionStore, error) {
	if cfg.Session.Store == config.SessionStoreRedis {
		return convo.NewRedisStore(ctx, convo.RedisConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			Prefix:   cfg.Session.RedisPrefix,
			TTL:      cfg.Session.TTL,
			Metrics:  m,
		})
	}
	return convo.NewMemoryStore(convo.MemoryConfig{
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		MaxSessions:     cfg.Session.MaxSessions,
		Metrics:         m,
	}), nil
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT/SIGTERM.
//
// Shutdown order:
//  1. Cancel context to stop background jobs (watcher, poller, retention, warmup)
//  2. Wait for them, so nothing writes to a closed database
//  3. Drain HTTP requests, then close the chat log, database and session store
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server error")
		cancel()
		a.wg.Wait()
		_ = a.shutdown()
		return err
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startHTTPServer starts the HTTP server in a goroutine. The returned
// channel receives the error if the listener fails.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown must run after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")
	a.closeResources(shutdownCtx)

	sentry.Flush(2 * time.Second)
	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	return nil
}

func (a *Application) closeResources(ctx context.Context) {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.chatlog != nil {
		if err := a.chatlog.Close(ctx); err != nil {
			a.logger.WithError(err).WithField("component", "chatlog").Warn("Pending chat log writes abandoned")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		}
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "sessions").Error("Component close error")
		}
	}
}
