package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/melonneet/ezhishi-chatbot/internal/buildinfo"
	"github.com/melonneet/ezhishi-chatbot/internal/config"
	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/pipeline"
	"github.com/melonneet/ezhishi-chatbot/internal/sentry"
)

// router builds the gin engine. Middleware order: recovery, error
// tracking, request context, logging, security headers, CORS.
func (a *Application) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if sentry.IsEnabled() {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	r.Use(requestContextMiddleware())
	r.Use(loggingMiddleware(a.logger, a.metrics))
	r.Use(securityHeadersMiddleware())
	r.Use(corsMiddleware(a.cfg.CORSOrigins))

	r.GET("/health", a.health)
	r.GET("/livez", a.livenessCheck)
	r.HEAD("/livez", a.livenessCheck)
	r.GET("/readyz", a.readinessCheck)
	r.HEAD("/readyz", a.readinessCheck)
	r.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	search := rateLimitMiddleware(a.limiter, a.writeError)
	api.POST("/search", search, a.searchPost)
	api.GET("/search", search, a.searchGet)
	api.GET("/categories", a.categories)
	api.GET("/faqs/:category", a.faqsByCategory)
	api.POST("/sessions/:id/end", a.endSession)
	api.GET("/sessions/stats", a.sessionStats)

	return r
}

func (a *Application) searchPost(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		a.writeError(c, domerrors.NewWrapper("app", "search").
			Wrap(fmt.Errorf("%w: %w", domerrors.ErrInvalidInput, err), "request body must be JSON with a query field"))
		return
	}
	a.search(c, req)
}

func (a *Application) searchGet(c *gin.Context) {
	a.search(c, pipeline.Request{
		Query:     c.Query("q"),
		SessionID: c.Query("sessionId"),
	})
}

func (a *Application) search(c *gin.Context, req pipeline.Request) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ResolveTotal)
	defer cancel()

	resp, err := a.pipeline.Resolve(ctx, req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps domain errors to status codes. Unexpected errors are
// reported to Sentry and answered with the WrappedError user message when
// one is in the chain.
func (a *Application) writeError(c *gin.Context, err error) {
	var ve *domerrors.ValidationError
	var wrapped *domerrors.WrappedError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case domerrors.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": domerrors.GetUserMessage(err)})
	case domerrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": domerrors.GetUserMessage(err)})
	case domerrors.IsRateLimitExceeded(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": domerrors.GetUserMessage(err)})
	case errors.Is(err, domerrors.ErrStageUnavailable):
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "FAQ index is loading, please retry shortly"})
	case errors.Is(err, domerrors.ErrTimeout):
		a.logger.WithError(err).Warn("Request timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": domerrors.GetUserMessage(err)})
	case errors.As(err, &wrapped):
		a.logger.WithError(err).WithModule(wrapped.Module).Error("Request failed")
		sentry.CaptureExceptionWithContext(c.Request.Context(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": wrapped.UserMessage})
	default:
		a.logger.WithError(err).Error("Request failed")
		sentry.CaptureExceptionWithContext(c.Request.Context(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (a *Application) categories(c *gin.Context) {
	idx := a.holder.Load()
	if idx == nil {
		a.writeError(c, domerrors.ErrStageUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": idx.Categories()})
}

func (a *Application) faqsByCategory(c *gin.Context) {
	idx := a.holder.Load()
	if idx == nil {
		a.writeError(c, domerrors.ErrStageUnavailable)
		return
	}
	category := c.Param("category")
	entries := idx.ByCategory(category)
	if len(entries) == 0 {
		a.writeError(c, domerrors.NewWrapper("faq", "by_category").
			Wrapf(fmt.Errorf("category %q: %w", category, domerrors.ErrNotFound), "unknown category %s", category))
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "faqs": entries})
}

func (a *Application) endSession(c *gin.Context) {
	id := c.Param("id")
	if err := a.sessions.EndSession(c.Request.Context(), id); err != nil {
		a.writeError(c, err)
		return
	}
	a.chatlog.RecordSessionEnd(id)
	c.JSON(http.StatusOK, gin.H{"sessionId": id, "ended": true})
}

func (a *Application) sessionStats(c *gin.Context) {
	st, err := a.sessions.Stats(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *Application) health(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"version":  buildinfo.String(),
		"semantic": a.embedder != nil,
		"chatlog":  a.chatlog != nil,
	}
	if idx := a.holder.Load(); idx != nil {
		body["faqs"] = idx.Len()
		body["categories"] = len(idx.Categories())
		body["embedded"] = len(idx.Vectors())
		body["source"] = idx.Source()
		body["indexBuiltAt"] = idx.BuiltAt().UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if !a.holder.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "faq index not loaded",
		})
		return
	}

	if !a.readiness.IsReady() {
		status := a.readiness.Status()
		a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
			WithField("grace_seconds", status.GraceSeconds).
			Debug("Readiness check: warmup in progress")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"reason":   status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"grace_seconds":   status.GraceSeconds,
			},
		})
		return
	}

	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"faqs":            a.holder.Load().Len(),
		"warmupCompleted": a.readiness.WarmupCompleted(),
		"chatlog":         a.db != nil,
	})
}
