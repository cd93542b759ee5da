package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/melonneet/ezhishi-chatbot/internal/convo"
	"github.com/melonneet/ezhishi-chatbot/internal/faq"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
	"github.com/melonneet/ezhishi-chatbot/internal/storage"
)

// fixtureEntries has no literal "passcode" anywhere and no "forgot"
// alternate, so that query can only be answered semantically.
func fixtureEntries() []faq.Entry {
	return []faq.Entry{
		{
			ID:                   "pw",
			Category:             "Password",
			QuestionEn:           "How do I reset my password?",
			QuestionZh:           "忘记密码怎么办？",
			AlternateQuestionsZh: []string{"如何重设密码"},
			Answer:               "Click Forgot Password and follow the email link.",
		},
		{
			ID:         "pwchange",
			Category:   "Account Settings",
			QuestionEn: "How do I change my password?",
			QuestionZh: "如何更改密码？",
			Answer:     "Open your profile and choose Change Password.",
		},
		{
			ID:                   "login",
			Category:             "Login",
			QuestionEn:           "Where can I find my login ID?",
			QuestionZh:           "我的登录账号在哪里？",
			AlternateQuestionsEn: []string{"What is my username?"},
			Answer:               "Your login ID is printed on the subscription letter.",
		},
		{
			ID:         "practice",
			Category:   "Practice",
			QuestionEn: "Where can I find practice exercises?",
			QuestionZh: "在哪里可以找到练习？",
			Answer:     "Practice exercises are in the Practice tab.",
		},
		{
			ID:         "delivery",
			Category:   "Delivery",
			QuestionEn: "When will I receive my magazine?",
			QuestionZh: "什么时候会收到杂志？",
			Answer:     "Magazines arrive in the first week of each month.",
		},
	}
}

// axisEmbedder embeds text as the sum of the axes of the words it
// contains: password, login, delivery and a noise axis.
type axisEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
}

var axes = []struct {
	word string
	vec  []float32
}{
	{"password", []float32{1, 0, 0, 0}},
	{"passcode", []float32{1, 0, 0, 0}},
	{"密码", []float32{1, 0, 0, 0}},
	{"credentials", []float32{1, 0, 0, 2}},
	{"login", []float32{0, 1, 0, 0}},
	{"username", []float32{0, 1, 0, 0}},
	{"magazine", []float32{0, 0, 1, 0}},
}

func (a *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	a.mu.Lock()
	if a.calls == nil {
		a.calls = make(map[string]int)
	}
	a.calls[text]++
	a.mu.Unlock()

	lower := strings.ToLower(text)
	v := make([]float32, 4)
	for _, ax := range axes {
		if strings.Contains(lower, ax.word) {
			for i := range v {
				v[i] += ax.vec[i]
			}
		}
	}
	return v, nil
}

func (a *axisEmbedder) callsFor(text string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[text]
}

func buildIndex(t *testing.T, entries []faq.Entry, e faq.Embedder) *faq.Index {
	t.Helper()
	idx, err := faq.Build(context.Background(), entries, faq.Options{Source: "test", Embedder: e})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return idx
}

// chatLogSpy records chat log calls in order.
type chatLogSpy struct {
	mu     sync.Mutex
	events []string
	bot    []storage.Message
	asked  []storage.Question
}

func (c *chatLogSpy) Record(_ string, turn storage.TurnType, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, string(turn)+":"+text)
}

func (c *chatLogSpy) RecordMessage(m storage.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, string(m.Type)+":"+m.Text)
	c.bot = append(c.bot, m)
}

func (c *chatLogSpy) RecordQuestion(q storage.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "question:"+q.Text)
	c.asked = append(c.asked, q)
}

type testEnv struct {
	p        *Pipeline
	metrics  *metrics.Metrics
	embedder *axisEmbedder
	sessions *convo.Manager
	chatlog  *chatLogSpy
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{
		metrics:  metrics.New(prometheus.NewRegistry()),
		embedder: &axisEmbedder{},
		chatlog:  &chatLogSpy{},
	}
	idx := buildIndex(t, fixtureEntries(), env.embedder)
	env.sessions = convo.NewManager(convo.NewMemoryStore(convo.MemoryConfig{}), 0, nil)
	t.Cleanup(func() { _ = env.sessions.Close() })

	cfg := Config{
		Holder:   faq.NewStaticHolder(idx),
		Sessions: env.sessions,
		Embedder: env.embedder,
		ChatLog:  env.chatlog,
		Metrics:  env.metrics,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	env.p = New(cfg)
	return env
}
