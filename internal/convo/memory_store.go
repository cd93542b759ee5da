package convo

import (
	"context"
	"fmt"
	"sync"
	"time"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

// Default memory store settings.
const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// MemoryConfig configures a MemoryStore.
type MemoryConfig struct {
	// TTL is how long a session may stay idle before it expires.
	TTL time.Duration

	// CleanupInterval is how often expired sessions are removed.
	CleanupInterval time.Duration

	// MaxSessions bounds the store (0 = unbounded). Saving a new session at
	// capacity evicts the least recently used one.
	MaxSessions int

	// Optional metrics reporter
	Metrics *metrics.Metrics
}

// MemoryStore keeps sessions in process memory and expires idle ones.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	config  MemoryConfig
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

type memoryEntry struct {
	session  *Session
	lastUsed time.Time
}

// NewMemoryStore creates a store and starts its cleanup loop. Call Close to
// stop it.
//
//	store := convo.NewMemoryStore(convo.MemoryConfig{TTL: 30 * time.Minute})
//	defer store.Close()
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	return newMemoryStore(cfg, time.Now)
}

func newMemoryStore(cfg MemoryConfig, now func() time.Time) *MemoryStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		config:  cfg,
		now:     now,
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Get implements SessionStore and refreshes the session's idle timer.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || s.expired(e) {
		return nil, fmt.Errorf("session %s: %w", id, domerrors.ErrNotFound)
	}
	e.lastUsed = s.now()
	return e.session.clone(), nil
}

// Save implements SessionStore.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return domerrors.NewValidationError("sessionId", "must not be empty")
	}

	s.mu.Lock()
	if _, exists := s.entries[sess.ID]; !exists && s.config.MaxSessions > 0 && len(s.entries) >= s.config.MaxSessions {
		s.evictOldestLocked()
	}
	s.entries[sess.ID] = &memoryEntry{session: sess.clone(), lastUsed: s.now()}
	count := len(s.entries)
	s.mu.Unlock()

	s.config.Metrics.SetActiveSessions(count)
	return nil
}

// Delete implements SessionStore. Unknown ids are not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	count := len(s.entries)
	s.mu.Unlock()

	s.config.Metrics.SetActiveSessions(count)
	return nil
}

// Len implements SessionStore. Expired sessions awaiting cleanup are not
// counted.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if !s.expired(e) {
			n++
		}
	}
	return n, nil
}

// Range implements SessionStore.
func (s *MemoryStore) Range(ctx context.Context, fn func(*Session) bool) error {
	s.mu.RLock()
	live := make([]*Session, 0, len(s.entries))
	for _, e := range s.entries {
		if !s.expired(e) {
			live = append(live, e.session.clone())
		}
	}
	s.mu.RUnlock()

	for _, sess := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(sess) {
			return nil
		}
	}
	return nil
}

// Close stops the cleanup loop. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.stopped.Do(func() { close(s.stopCh) })
	return nil
}

func (s *MemoryStore) expired(e *memoryEntry) bool {
	return s.now().Sub(e.lastUsed) > s.config.TTL
}

// evictOldestLocked removes the least recently used session. Caller holds mu.
func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
		s.config.Metrics.RecordSessionEvicted("capacity", 1)
	}
}

// removeExpired deletes idle sessions and returns how many were removed.
func (s *MemoryStore) removeExpired() int {
	s.mu.Lock()
	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	count := len(s.entries)
	s.mu.Unlock()

	s.config.Metrics.RecordSessionEvicted("ttl", removed)
	s.config.Metrics.SetActiveSessions(count)
	return removed
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}
