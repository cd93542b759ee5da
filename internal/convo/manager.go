package convo

import (
	"context"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/logger"
)

// Analysis is everything the heuristics extract from one message.
type Analysis struct {
	Topics     []string      `json:"topics"`
	Entities   []Entity      `json:"entities"`
	Intent     Intent        `json:"intent"`
	IsFollowUp bool          `json:"isFollowUp"`
	Reference  ReferenceType `json:"referenceType,omitempty"`
	Sentiment  Sentiment     `json:"sentiment"`
}

// Analyze runs every extractor over query in the context of s (which may
// be nil for a fresh conversation).
func Analyze(query string, s *Session) Analysis {
	return Analysis{
		Topics:     ExtractTopics(query),
		Entities:   ExtractEntities(query),
		Intent:     DetectIntent(query, s),
		IsFollowUp: IsFollowUp(query, s),
		Reference:  DetectReference(query),
		Sentiment:  AnalyzeSentiment(query),
	}
}

// Stats summarizes the live sessions.
type Stats struct {
	ActiveSessions            int     `json:"activeSessions"`
	TotalMessages             int     `json:"totalMessages"`
	AverageMessagesPerSession float64 `json:"averageMessagesPerSession"`
}

// Manager owns session lifecycles on top of a SessionStore.
type Manager struct {
	store  SessionStore
	window int
	locks  *keyedMutex
	logger *logger.Logger
	now    func() time.Time
}

// NewManager returns a manager keeping window turns per session
// (window <= 0 uses DefaultWindow).
func NewManager(store SessionStore, window int, log *logger.Logger) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		store:  store,
		window: window,
		locks:  newKeyedMutex(),
		logger: log,
		now:    time.Now,
	}
}

// Window returns the number of turns kept per session.
func (m *Manager) Window() int { return m.window }

// Session returns the stored session for id, or a new empty one. The new
// session is not saved.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, domerrors.NewValidationError("sessionId", "must not be empty")
	}
	s, err := m.store.Get(ctx, id)
	if errors.Is(err, domerrors.ErrNotFound) {
		return NewSession(id, m.now()), nil
	}
	if err != nil {
		return nil, storeError("get_session", err)
	}
	return s, nil
}

// WithSession loads the session for id, passes it to fn and saves it when
// fn succeeds. Calls for the same id are serialized, so concurrent turns of
// one conversation cannot overwrite each other.
func (m *Manager) WithSession(ctx context.Context, id string, fn func(*Session) error) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.Session(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return storeError("save_session", m.store.Save(ctx, s))
}

// Record appends a turn to s and returns the analysis of query. Use it
// inside WithSession.
func (m *Manager) Record(s *Session, query string, reply Reply) Analysis {
	a := Analyze(query, s)
	s.addTurn(Turn{
		Query:     query,
		Reply:     reply,
		Timestamp: m.now(),
		Topics:    a.Topics,
		Entities:  a.Entities,
		Intent:    a.Intent,
	}, m.window)
	return a
}

// AddMessage records one turn for session id.
func (m *Manager) AddMessage(ctx context.Context, id, query string, reply Reply) error {
	return m.WithSession(ctx, id, func(s *Session) error {
		m.Record(s, query, reply)
		return nil
	})
}

// EndSession discards the session for id.
func (m *Manager) EndSession(ctx context.Context, id string) error {
	if id == "" {
		return domerrors.NewValidationError("sessionId", "must not be empty")
	}
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return storeError("end_session", err)
	}
	if m.logger != nil {
		m.logger.WithSessionID(id).Debug("Session ended")
	}
	return nil
}

// Stats counts live sessions and their retained turns.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := m.store.Range(ctx, func(s *Session) bool {
		st.ActiveSessions++
		st.TotalMessages += len(s.Turns)
		return true
	})
	if err != nil {
		return Stats{}, storeError("stats", err)
	}
	if st.ActiveSessions > 0 {
		st.AverageMessagesPerSession = float64(st.TotalMessages) / float64(st.ActiveSessions)
	}
	return st, nil
}

// storeError wraps a session store failure for handlers. Deadline overruns
// also match errors.ErrTimeout.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domerrors.ErrTimeout, err)
	}
	return domerrors.NewWrapper("convo", op).Wrap(err, "session store unavailable")
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
