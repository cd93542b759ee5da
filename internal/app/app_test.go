package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melonneet/ezhishi-chatbot/internal/config"
	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/pipeline"
	"github.com/melonneet/ezhishi-chatbot/internal/ratelimit"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
	"github.com/melonneet/ezhishi-chatbot/internal/warmup"
)

const faqJSON = `[
  {
    "category": "Password",
    "questionEn": "How do I reset my password?",
    "questionZh": "忘记密码怎么办？",
    "answer": "Click Forgot Password and follow the email link."
  },
  {
    "category": "Login",
    "questionEn": "Where can I find my login ID?",
    "questionZh": "我的登录账号在哪里？",
    "alternateQuestionsEn": ["What is my username?"],
    "answerEn": "Your login ID is printed on the subscription letter."
  },
  {
    "category": "Delivery",
    "questionEn": "When will I receive my magazine?",
    "answer": "Magazines arrive in the first week of each month."
  }
]`

type testApp struct {
	*Application
	router *gin.Engine
}

// newTestApp wires an Application the way Initialize does, but from an
// in-memory FAQ document and without a network embedder.
func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()

	cfg := &config.Config{
		Port:                  "0",
		ShutdownTimeout:       time.Second,
		RateLimitBurst:        100,
		RateLimitRefillPerSec: 100,
		MetricsUsername:       "prometheus",
		ChatLogEnabled:        true,
		DataDir:               t.TempDir(),
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewWithWriter("error", &bytes.Buffer{})
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	res, err := faq.Parse("test.json", faq.FormatJSON, []byte(faqJSON))
	require.NoError(t, err)
	idx, err := faq.Build(context.Background(), res.Entries, faq.Options{Source: "test"})
	require.NoError(t, err)
	holder := faq.NewStaticHolder(idx)

	sessions := convo.NewManager(convo.NewMemoryStore(convo.MemoryConfig{Metrics: m}), 5, log)
	t.Cleanup(func() { _ = sessions.Close() })

	a := &Application{
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		registry:  registry,
		holder:    holder,
		sessions:  sessions,
		readiness: warmup.NewReadinessState(time.Hour),
	}
	pcfg := pipeline.Config{Match: cfg.Match, Holder: holder, Sessions: sessions, Metrics: m, Logger: log}

	if cfg.ChatLogEnabled {
		db, err := storage.New(context.Background(), filepath.Join(cfg.DataDir, "chatlog.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		a.db = db
		a.chatlog = storage.NewChatLogger(db, storage.ChatLogOptions{Metrics: m, Logger: log})
		t.Cleanup(func() { _ = a.chatlog.Close(context.Background()) })
		pcfg.ChatLog = a.chatlog
	}

	a.pipeline = pipeline.New(pcfg)
	a.limiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:       "search",
		Burst:      cfg.RateLimitBurst,
		RefillRate: cfg.RateLimitRefillPerSec,
		Metrics:    m,
	})
	t.Cleanup(a.limiter.Stop)

	return &testApp{Application: a, router: a.router()}
}

func (ta *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", "widget-test/1.0")
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

type searchBody struct {
	Results []struct {
		MatchType  string  `json:"matchType"`
		Answer     string  `json:"answer"`
		IsFallback bool    `json:"isFallback"`
		Score      float64 `json:"score"`
		FAQ        *struct {
			Category string `json:"category"`
		} `json:"faq"`
	} `json:"results"`
	SessionID string `json:"sessionId"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSearch_Post(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[searchBody](t, w)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "exact", body.Results[0].MatchType)
	assert.Equal(t, "Click Forgot Password and follow the email link.", body.Results[0].Answer)
	assert.Equal(t, "s1", body.SessionID)
	require.NotNil(t, body.Results[0].FAQ)
	assert.Equal(t, "Password", body.Results[0].FAQ.Category)
}

func TestSearch_Get(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodGet, "/api/search?q=What+is+my+username%3F", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[searchBody](t, w)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "alternate", body.Results[0].MatchType)
	assert.NotEmpty(t, body.SessionID, "a session id is issued when none is sent")
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"   "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[]}`, w.Body.String())
}

func TestSearch_Fallback(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"Who won the football match yesterday evening?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[searchBody](t, w)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "fallback", body.Results[0].MatchType)
	assert.True(t, body.Results[0].IsFallback)
}

func TestSearch_BadRequests(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) { c.Match.MaxQueryRunes = 10 })

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"request body must be JSON with a query field"}`, w.Body.String())

	w = ta.do(t, http.MethodPost, "/api/search", `{"query":"this query is far too long"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}](t, w)
	assert.Equal(t, "query", body.Field)
	assert.Contains(t, body.Error, "at most 10 characters")

	w = ta.do(t, http.MethodGet, "/api/search?q=short", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch_IndexNotLoaded(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)
	ta.holder = faq.NewStaticHolder(nil)
	ta.pipeline = pipeline.New(pipeline.Config{Holder: ta.holder, Sessions: ta.sessions, Metrics: ta.metrics})
	ta.router = ta.Application.router()

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = ta.do(t, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ta.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "faq index not loaded")
}

func TestSearch_RateLimited(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) {
		c.RateLimitBurst = 2
		c.RateLimitRefillPerSec = 0.001
	})

	for range 2 {
		w := ta.do(t, http.MethodPost, "/api/search", `{"query":"hello"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"hello"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retry := w.Header().Get("Retry-After")
	require.NotEmpty(t, retry)
	assert.JSONEq(t, `{"error":"too many requests, retry in `+retry+`s"}`, w.Body.String())

	// Catalog endpoints are not rate limited.
	w = ta.do(t, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCategories(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Categories []string `json:"categories"`
	}](t, w)
	assert.ElementsMatch(t, []string{"Password", "Login", "Delivery"}, body.Categories)

	w = ta.do(t, http.MethodGet, "/api/faqs/Login", "")
	require.Equal(t, http.StatusOK, w.Code)
	faqs := decode[struct {
		FAQs []faq.Entry `json:"faqs"`
	}](t, w)
	require.Len(t, faqs.FAQs, 1)
	assert.Equal(t, "Your login ID is printed on the subscription letter.", faqs.FAQs[0].Answer)

	w = ta.do(t, http.MethodGet, "/api/faqs/Billing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"unknown category Billing"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	storeDown := domerrors.NewWrapper("convo", "end_session").Wrap(errors.New("dial tcp: refused"), "session store unavailable")
	storeSlow := domerrors.NewWrapper("convo", "stats").
		Wrap(fmt.Errorf("%w: %w", domerrors.ErrTimeout, context.DeadlineExceeded), "session store unavailable")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", domerrors.NewValidationError("query", "too long"), http.StatusBadRequest,
			`{"error":"validation failed on query: too long","field":"query"}`},
		{"not found", domerrors.NewWrapper("faq", "by_category").Wrap(domerrors.ErrNotFound, "unknown category X"),
			http.StatusNotFound, `{"error":"unknown category X"}`},
		{"rate limited", domerrors.NewWrapper("app", "rate_limit").Wrap(domerrors.ErrRateLimitExceeded, "slow down"),
			http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"index loading", domerrors.ErrStageUnavailable, http.StatusServiceUnavailable,
			`{"error":"FAQ index is loading, please retry shortly"}`},
		{"timeout", storeSlow, http.StatusGatewayTimeout, `{"error":"session store unavailable"}`},
		{"wrapped failure", storeDown, http.StatusInternalServerError, `{"error":"session store unavailable"}`},
		{"bare failure", errors.New("disk on fire"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			ta.writeError(c, tt.err)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestSessions_StatsAndEnd(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?","sessionId":"s1"}`)
	ta.do(t, http.MethodPost, "/api/search", `{"query":"and my login ID?","sessionId":"s1"}`)

	w := ta.do(t, http.MethodGet, "/api/sessions/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[convo.Stats](t, w)
	assert.Equal(t, 1, st.ActiveSessions)
	assert.Equal(t, 2, st.TotalMessages)

	w = ta.do(t, http.MethodPost, "/api/sessions/s1/end", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ta.do(t, http.MethodGet, "/api/sessions/stats", "")
	st = decode[convo.Stats](t, w)
	assert.Equal(t, 0, st.ActiveSessions)

	// Ending an unknown session is not an error.
	w = ta.do(t, http.MethodPost, "/api/sessions/nobody/end", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearch_PersistsChatLog(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?","sessionId":"logged"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = ta.do(t, http.MethodPost, "/api/sessions/logged/end", "")
	require.Equal(t, http.StatusOK, w.Code)

	// Close drains the queue.
	require.NoError(t, ta.chatlog.Close(context.Background()))

	ctx := context.Background()
	msgs, err := ta.db.Messages(ctx, "logged", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "How do I reset my password?", msgs[0].Text)

	sess, err := ta.db.Session(ctx, "logged")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", sess.ClientIP)
	assert.Equal(t, "widget-test/1.0", sess.UserAgent)
	assert.NotNil(t, sess.EndedAt)
}

func TestChatLogDisabled(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) { c.ChatLogEnabled = false })

	w := ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = ta.do(t, http.MethodPost, "/api/sessions/s1/end", "")
	assert.Equal(t, http.StatusOK, w.Code)

	ta.readiness.MarkReady()
	w = ta.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := ta.do(t, method, "/livez", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := ta.do(t, http.MethodGet, "/livez", "")
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), warmup.ReasonWarming)

	ta.readiness.MarkReady()
	w = ta.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, true, body["warmupCompleted"])
	assert.InDelta(t, 3, body["faqs"], 0)

	require.NoError(t, ta.db.Close())
	w = ta.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unavailable")
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 3, body["faqs"], 0)
	assert.Equal(t, false, body["semantic"])
	assert.Equal(t, "test", body["source"])
}

func TestMiddleware_RequestIDAndSecurityHeaders(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, nil)

	w := ta.do(t, http.MethodGet, "/livez", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestMiddleware_CORS(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) { c.CORSOrigins = []string{"https://www.ezhishi.com"} })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		ta.router.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://www.ezhishi.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://www.ezhishi.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	w = preflight("https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "https://www.ezhishi.com")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://www.ezhishi.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_CORSWildcard(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) { c.CORSOrigins = []string{"*"} })

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.Header.Set("Origin", "https://partner.example")
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	assert.Equal(t, "https://partner.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ta := newTestApp(t, func(c *config.Config) { c.MetricsPassword = "secret" })

	ta.do(t, http.MethodPost, "/api/search", `{"query":"How do I reset my password?"}`)

	w := ta.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prometheus", "secret")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ezhishi_http_requests_total{route="/api/search",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `ezhishi_pipeline_resolutions_total{match_type="exact"} 1`)
}

func TestInitialize(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the Chinese dictionary")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "faqs.json")
	require.NoError(t, os.WriteFile(path, []byte(faqJSON), 0o600))

	cfg := &config.Config{
		Port:                  "0",
		LogLevel:              "error",
		ShutdownTimeout:       time.Second,
		ServiceName:           "ezhishi-test",
		InstanceID:            "test-1",
		DataDir:               dir,
		ChatLogEnabled:        true,
		ChatLogBuffer:         16,
		FAQPath:               path,
		EmbeddingProvider:     config.ProviderLocal,
		RateLimitBurst:        10,
		RateLimitRefillPerSec: 1,
		WarmupGracePeriod:     time.Minute,
		Session: config.SessionConfig{
			Store:           config.SessionStoreMemory,
			TTL:             time.Minute,
			Window:          5,
			CleanupInterval: time.Minute,
		},
	}

	a, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.closeResources(context.Background()) })

	assert.NotNil(t, a.embedder)
	assert.NotNil(t, a.chatlog)
	assert.Equal(t, 3, a.holder.Load().Len())
	assert.True(t, a.holder.Load().HasEmbeddings())

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"How do I reset my password?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"matchType":"exact"`)
}

func TestInitialize_MissingFAQFile(t *testing.T) {
	cfg := &config.Config{
		LogLevel:          "error",
		FAQPath:           filepath.Join(t.TempDir(), "missing.json"),
		EmbeddingProvider: config.ProviderNone,
	}
	_, err := Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faq index")
}
