package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_FileSystemDatabase(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	db, err := New(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNew_InMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := New(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s", Type: TurnUser, Text: "hi"}))
	n, err := db.MessageCount(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	at := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Type: TurnUser, Text: "How do I reset my password?", CreatedAt: at}))
	require.NoError(t, db.SaveMessage(ctx, Message{
		SessionID: "s1", Type: TurnBot, Text: "Click Forgot Password.",
		MatchType: "exact", FAQID: "pw", CreatedAt: at.Add(time.Second),
	}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s2", Type: TurnUser, Text: "hello"}))

	msgs, err := db.Messages(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, TurnUser, msgs[0].Type)
	assert.Equal(t, "", msgs[0].MatchType)
	assert.Equal(t, "pw", msgs[1].FAQID)
	assert.True(t, msgs[1].CreatedAt.Equal(at.Add(time.Second)))

	last, err := db.Messages(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, last, 1)

	n, err := db.MessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = db.MessageCount(ctx, "missing")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	at := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "s1", Type: TurnUser, Text: "hi", CreatedAt: at}))
	require.NoError(t, db.SaveMessage(ctx, Message{
		SessionID: "s1", Type: TurnBot, Text: "Hello!", CreatedAt: at.Add(time.Second),
		ClientIP: "198.51.100.1", UserAgent: "first",
	}))
	require.NoError(t, db.SaveMessage(ctx, Message{
		SessionID: "s1", Type: TurnBot, Text: "Again", CreatedAt: at.Add(2 * time.Second),
		ClientIP: "198.51.100.2", UserAgent: "second",
	}))

	sess, err := db.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.MessageCount)
	assert.True(t, sess.StartedAt.Equal(at))
	assert.Nil(t, sess.EndedAt)
	assert.Equal(t, "198.51.100.1", sess.ClientIP, "first seen client is kept")
	assert.Equal(t, "first", sess.UserAgent)

	end := at.Add(time.Minute)
	require.NoError(t, db.EndSession(ctx, "s1", end))
	sess, err = db.Session(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess.EndedAt)
	assert.True(t, sess.EndedAt.Equal(end))
	assert.True(t, sess.UpdatedAt.Equal(end))

	assert.ErrorIs(t, db.EndSession(ctx, "missing", end), domerrors.ErrNotFound)
	_, err = db.Session(ctx, "missing")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	assert.True(t, domerrors.IsInvalidInput(db.EndSession(ctx, "", end)))
}

func TestSaveMessage_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	assert.True(t, domerrors.IsInvalidInput(db.SaveMessage(ctx, Message{Type: TurnUser, Text: "x"})))
	assert.True(t, domerrors.IsInvalidInput(db.SaveMessage(ctx, Message{SessionID: "s", Type: "system", Text: "x"})))
}

func TestQuestionStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)

	observations := []Question{
		{Text: "How do I reset my password?", MatchType: "exact", FAQID: "pw"},
		{Text: "how do i reset my password", MatchType: "semantic", FAQID: "pw"},
		{Text: "Do you sell 100% cotton shirts?", MatchType: "fallback", Fallback: true},
		{Text: "When will I receive my magazine?", MatchType: "exact", FAQID: "delivery"},
	}
	for i, q := range observations {
		q.AskedAt = time.UnixMilli(int64(1000 * (i + 1)))
		require.NoError(t, db.RecordQuestion(ctx, q))
	}
	assert.ErrorIs(t, db.RecordQuestion(ctx, Question{Text: " ? "}), domerrors.ErrEmptyQuery)

	top, err := db.TopQuestions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "how do i reset my password", top[0].Question)
	assert.Equal(t, 2, top[0].AskCount)
	assert.Equal(t, "semantic", top[0].LastMatchType)

	gaps, err := db.UnansweredQuestions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, 1, gaps[0].FallbackCount)

	found, err := db.SearchQuestions(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Do you sell 100% cotton shirts?", found[0].Question)

	none, err := db.SearchQuestions(ctx, "100_", 10)
	require.NoError(t, err)
	assert.Empty(t, none, "underscore must not act as a wildcard")
}

func TestDeleteSessionsBefore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now()

	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "old", Type: TurnUser, Text: "a", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, db.SaveMessage(ctx, Message{SessionID: "new", Type: TurnUser, Text: "b", CreatedAt: now}))

	n, err := db.DeleteSessionsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	msgs, err := db.Messages(ctx, "old", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages cascade with their session")
}
