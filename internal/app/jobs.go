package app

import (
	"context"
	"time"

	"github.com/melonneet/ezhishi-chatbot/internal/config"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/warmup"
)

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.cfg.FAQRemoteKey != "" {
		a.wg.Go(func() {
			a.pollRemoteFAQ(ctx)
		})
	} else if a.cfg.FAQWatch {
		a.wg.Go(func() {
			a.watchFAQFile(ctx)
		})
	}
	if a.db != nil && a.cfg.ChatLogRetain > 0 {
		a.wg.Go(func() {
			a.chatLogRetention(ctx)
		})
	}
	a.wg.Go(func() {
		a.embeddingWarmup(ctx)
	})
	a.wg.Go(func() {
		a.updateSessionMetrics(ctx)
	})
}

func (a *Application) reloadFAQ(ctx context.Context, trigger string) {
	reloadCtx, cancel := context.WithTimeout(ctx, config.IndexBuild)
	defer cancel()
	if err := a.holder.Reload(reloadCtx, trigger); err != nil {
		a.logger.WithError(err).WithField("trigger", trigger).Error("FAQ reload failed, keeping previous index")
	}
}

// watchFAQFile rebuilds the index whenever FAQ_PATH changes on disk.
func (a *Application) watchFAQFile(ctx context.Context) {
	a.logger.Debug("FAQ watcher started")
	defer a.logger.Debug("FAQ watcher stopped")

	w := faq.NewWatcher(a.cfg.FAQPath, config.FAQWatchDebounce, func(ctx context.Context) {
		a.reloadFAQ(ctx, "watch")
	}, a.logger.WithModule("faq"))
	if err := w.Run(ctx); err != nil {
		a.logger.WithError(err).Error("FAQ watcher failed, hot reload disabled")
	}
}

// pollRemoteFAQ checks the remote object's ETag every FAQ_REMOTE_POLL.
func (a *Application) pollRemoteFAQ(ctx context.Context) {
	a.logger.WithField("interval", a.cfg.FAQRemotePoll).Debug("Remote FAQ poller started")
	defer a.logger.Debug("Remote FAQ poller stopped")

	ticker := time.NewTicker(a.cfg.FAQRemotePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reloadFAQ(ctx, "poll")
		}
	}
}

// chatLogRetention purges chat sessions idle longer than CHATLOG_RETENTION,
// once at startup and then every ChatLogRetentionInterval.
func (a *Application) chatLogRetention(ctx context.Context) {
	a.logger.Debug("Chat log retention job started")
	defer a.logger.Debug("Chat log retention job stopped")

	a.purgeChatLog(ctx)

	ticker := time.NewTicker(config.ChatLogRetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.purgeChatLog(ctx)
		}
	}
}

func (a *Application) purgeChatLog(ctx context.Context) {
	start := time.Now()
	cutoff := start.Add(-a.cfg.ChatLogRetain)

	deleted, err := a.db.DeleteSessionsBefore(ctx, cutoff)
	a.metrics.RecordJob("chatlog_retention", time.Since(start).Seconds())
	if err != nil {
		a.logger.WithError(err).Error("Chat log retention failed")
		return
	}
	a.logger.WithField("deleted", deleted).
		WithField("cutoff", cutoff.Format(time.RFC3339)).
		Info("Chat log retention completed")
}

// embeddingWarmup pre-embeds frequently asked questions, then marks the
// service ready. Runs once per process.
func (a *Application) embeddingWarmup(ctx context.Context) {
	defer a.readiness.MarkReady()

	opts := warmup.Options{
		Holder:   a.holder,
		Embedder: a.embedder,
		Limit:    a.cfg.WarmupQuestions,
		Metrics:  a.metrics,
	}
	if a.db != nil {
		opts.Questions = a.db
	}
	if a.cfg.WarmupQuestions == 0 {
		opts.Questions = nil
	}

	warmCtx, cancel := context.WithTimeout(ctx, config.Warmup)
	defer cancel()
	if _, err := warmup.Run(warmCtx, a.logger.WithModule("warmup"), opts); err != nil {
		a.logger.WithError(err).Warn("Embedding cache warmup incomplete")
	}
}

// updateSessionMetrics refreshes the active session gauge from the store.
func (a *Application) updateSessionMetrics(ctx context.Context) {
	ticker := time.NewTicker(config.MetricsUpdate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := a.sessions.Stats(ctx)
			if err != nil {
				a.logger.WithError(err).Debug("Session stats unavailable")
				continue
			}
			a.metrics.SetActiveSessions(st.ActiveSessions)
		}
	}
}
