package app

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/melonneet/ezhishi-chatbot/internal/ctxutil"
	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestContextMiddleware stores the request id, client IP and user agent
// on the request context. The request id comes from the caller when it
// sends one and is echoed back.
func requestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-ID")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
		ctx = ctxutil.WithClientIP(ctx, c.ClientIP())
		ctx = ctxutil.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels
// (5xx=Error, 4xx=Warn except 404, everything else Debug) and counts them
// by route template.
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(route, strconv.Itoa(status))

		entry := log.WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())
		if requestID, ok := ctxutil.GetRequestID(c.Request.Context()); ok {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// corsMiddleware lets the chat widget call the API from the listed origins.
// "*" allows any origin. With no origins configured the API is same-origin
// only and no CORS headers are sent.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || len(origins) == 0 {
			c.Next()
			return
		}
		if !allowAll && !slices.Contains(origins, origin) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", requestIDHeader}, ", "))
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		c.Next()
	}
}

// rateLimitMiddleware applies the keyed token bucket per client IP.
// Rejections go through onLimited with an error wrapping
// ErrRateLimitExceeded.
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter, onLimited func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if limiter.Allow(key) {
			c.Next()
			return
		}
		retry := limiter.RetryAfter(key)
		seconds := 1
		if retry > 0 && retry < time.Hour {
			seconds = int(math.Ceil(retry.Seconds()))
		} else if retry >= time.Hour {
			seconds = int(time.Hour.Seconds())
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		onLimited(c, domerrors.NewWrapper("app", "rate_limit").
			Wrapf(domerrors.ErrRateLimitExceeded, "too many requests, retry in %ds", seconds))
		c.Abort()
	}
}
