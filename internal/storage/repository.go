package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/textnorm"
)

// slowQuery is the duration above which an operation is logged as slow.
const slowQuery = 100 * time.Millisecond

// SaveMessage appends a message and creates or touches its session.
func (db *DB) SaveMessage(ctx context.Context, m Message) (err error) {
	if m.SessionID == "" {
		return domerrors.NewValidationError("sessionId", "must not be empty")
	}
	if m.Type != TurnUser && m.Type != TurnBot {
		return domerrors.NewValidationError("type", fmt.Sprintf("unknown turn type %q", m.Type))
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	at := m.CreatedAt.UnixMilli()
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, created_at, updated_at, message_count, user_ip, user_agent)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			message_count = chat_sessions.message_count + 1,
			user_ip = COALESCE(chat_sessions.user_ip, excluded.user_ip),
			user_agent = COALESCE(chat_sessions.user_agent, excluded.user_agent)
	`, m.SessionID, at, at, nullString(m.ClientIP), nullString(m.UserAgent))
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, turn_type, text, match_type, faq_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.SessionID, string(m.Type), m.Text, nullString(m.MatchType), nullString(m.FAQID), at)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	if duration := time.Since(start); duration > slowQuery {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveMessage",
			"duration_ms", duration.Milliseconds(),
			"session_id", m.SessionID)
	}
	return nil
}

// Messages returns the messages of a session, oldest first, at most limit
// (limit <= 0 returns all).
func (db *DB) Messages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, turn_type, text, COALESCE(match_type, ''), COALESCE(faq_id, ''), created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY id
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		var turn string
		var at int64
		if err := rows.Scan(&m.ID, &m.SessionID, &turn, &m.Text, &m.MatchType, &m.FAQID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Type = TurnType(turn)
		m.CreatedAt = time.UnixMilli(at)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return out, nil
}

// MessageCount returns the number of logged messages for a session.
func (db *DB) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT message_count FROM chat_sessions WHERE id = ?`, sessionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("chat session %s: %w", sessionID, domerrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// RecordQuestion adds one observation to the question analytics. Questions
// are grouped by their normalized text.
func (db *DB) RecordQuestion(ctx context.Context, q Question) error {
	key := questionKey(q.Text)
	if key == "" {
		return domerrors.ErrEmptyQuery
	}
	if q.AskedAt.IsZero() {
		q.AskedAt = time.Now()
	}
	fallback := 0
	if q.Fallback {
		fallback = 1
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO question_stats (question_key, question, ask_count, fallback_count, last_match_type, last_faq_id, last_asked_at)
		VALUES (?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(question_key) DO UPDATE SET
			question = excluded.question,
			ask_count = question_stats.ask_count + 1,
			fallback_count = question_stats.fallback_count + excluded.fallback_count,
			last_match_type = excluded.last_match_type,
			last_faq_id = excluded.last_faq_id,
			last_asked_at = excluded.last_asked_at
	`, key, strings.TrimSpace(q.Text), fallback, nullString(q.MatchType), nullString(q.FAQID), q.AskedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}
	return nil
}

// TopQuestions returns the most asked questions.
func (db *DB) TopQuestions(ctx context.Context, limit int) ([]QuestionStat, error) {
	return db.questionStats(ctx, `ORDER BY ask_count DESC, last_asked_at DESC`, "", limit)
}

// UnansweredQuestions returns the questions that most often ended in the
// fallback answer: the gaps in the FAQ.
func (db *DB) UnansweredQuestions(ctx context.Context, limit int) ([]QuestionStat, error) {
	return db.questionStats(ctx, `ORDER BY fallback_count DESC, ask_count DESC`, "fallback_count > 0", limit)
}

// SearchQuestions returns logged questions containing term.
func (db *DB) SearchQuestions(ctx context.Context, term string, limit int) ([]QuestionStat, error) {
	key := questionKey(term)
	if key == "" {
		return nil, nil
	}
	return db.questionStats(ctx, `ORDER BY ask_count DESC`, `question_key LIKE '%' || ? || '%' ESCAPE '\'`, limit, sanitizeSearchTerm(key))
}

func (db *DB) questionStats(ctx context.Context, order, where string, limit int, args ...any) ([]QuestionStat, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT question, ask_count, fallback_count, COALESCE(last_match_type, ''), COALESCE(last_faq_id, ''), last_asked_at FROM question_stats`
	if where != "" {
		query += " WHERE " + where
	}
	query += " " + order + " LIMIT ?"

	rows, err := db.conn.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query question stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []QuestionStat
	for rows.Next() {
		var s QuestionStat
		var at int64
		if err := rows.Scan(&s.Question, &s.AskCount, &s.FallbackCount, &s.LastMatchType, &s.LastFAQID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan question stat: %w", err)
		}
		s.LastAskedAt = time.UnixMilli(at)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question stats: %w", err)
	}
	return out, nil
}

// EndSession stamps the session's end time. It returns ErrNotFound when the
// session never logged a message.
func (db *DB) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	if sessionID == "" {
		return domerrors.NewValidationError("sessionId", "must not be empty")
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE chat_sessions SET ended_at = ?, updated_at = MAX(updated_at, ?) WHERE id = ?`,
		at.UnixMilli(), at.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domerrors.ErrNotFound)
	}
	return nil
}

// Session returns the stored summary of a chat session.
func (db *DB) Session(ctx context.Context, sessionID string) (Session, error) {
	var (
		s              Session
		created, upd   int64
		ended          sql.NullInt64
		userIP, userUA sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, message_count, ended_at, user_ip, user_agent
		FROM chat_sessions WHERE id = ?
	`, sessionID).Scan(&s.ID, &created, &upd, &s.MessageCount, &ended, &userIP, &userUA)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", sessionID, domerrors.ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	s.StartedAt = time.UnixMilli(created)
	s.UpdatedAt = time.UnixMilli(upd)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		s.EndedAt = &t
	}
	s.ClientIP = userIP.String
	s.UserAgent = userUA.String
	return s, nil
}

// DeleteSessionsBefore removes chat sessions (and their messages) idle since
// before cutoff and returns how many were removed.
func (db *DB) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// questionKey groups questions that differ only in case, width, spacing or
// trailing punctuation.
func questionKey(text string) string {
	return strings.TrimRight(textnorm.Normalize(text), "?!.。？！ ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
