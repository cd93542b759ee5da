package convo

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/metrics"
)

func TestMemoryStore_SaveGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, domerrors.ErrNotFound)

	s := NewSession("s1", time.Now())
	s.addTurn(Turn{Query: "reset password", Topics: []string{"password"}}, DefaultWindow)
	require.NoError(t, store.Save(ctx, s))

	// Later caller mutations must not leak into the store.
	s.Turns[0].Query = "changed"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "reset password", got.Turns[0].Query)

	got.Topics[0] = "changed"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"password"}, again.Topics)

	var verr *domerrors.ValidationError
	assert.ErrorAs(t, store.Save(ctx, &Session{}), &verr)
}

func TestMemoryStore_TTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	store := newMemoryStore(MemoryConfig{TTL: time.Minute, CleanupInterval: time.Hour, Metrics: m}, clock.Now)
	defer store.Close()

	require.NoError(t, store.Save(ctx, NewSession("idle", clock.Now())))
	require.NoError(t, store.Save(ctx, NewSession("busy", clock.Now())))

	clock.Advance(40 * time.Second)
	_, err := store.Get(ctx, "busy")
	require.NoError(t, err, "read refreshes the idle timer")

	clock.Advance(40 * time.Second)
	_, err = store.Get(ctx, "idle")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	n, _ := store.Len(ctx)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1, store.removeExpired())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsEvictedTotal.WithLabelValues("ttl")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
}

func TestMemoryStore_Capacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	store := newMemoryStore(MemoryConfig{MaxSessions: 2, Metrics: m}, clock.Now)
	defer store.Close()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.Save(ctx, NewSession(id, clock.Now())))
		clock.Advance(time.Second)
	}
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)
	clock.Advance(time.Second)

	require.NoError(t, store.Save(ctx, NewSession("c", clock.Now())))

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, domerrors.ErrNotFound, "least recently used session is evicted")
	_, err = store.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsEvictedTotal.WithLabelValues("capacity")))

	// Re-saving an existing id never evicts.
	require.NoError(t, store.Save(ctx, NewSession("c", clock.Now())))
	n, _ := store.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_RangeDeleteClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore(MemoryConfig{})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, NewSession(id, time.Now())))
	}
	require.NoError(t, store.Delete(ctx, "b"))
	require.NoError(t, store.Delete(ctx, "unknown"))

	seen := map[string]bool{}
	require.NoError(t, store.Range(ctx, func(s *Session) bool {
		seen[s.ID] = true
		return true
	}))
	assert.Equal(t, map[string]bool{"a": true, "c": true}, seen)

	calls := 0
	require.NoError(t, store.Range(ctx, func(*Session) bool {
		calls++
		return false
	}))
	assert.Equal(t, 1, calls)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Range(canceled, func(*Session) bool { return true }), context.Canceled)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
