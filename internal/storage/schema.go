package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createSessionsTable(ctx, db); err != nil {
		return err
	}
	if err := createMessagesTable(ctx, db); err != nil {
		return err
	}
	return createQuestionStatsTable(ctx, db)
}

func createSessionsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		ended_at INTEGER,
		user_ip TEXT,
		user_agent TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated_at ON chat_sessions(updated_at);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create chat_sessions table: %w", err)
	}
	return nil
}

func createMessagesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		turn_type TEXT CHECK(turn_type IN ('user', 'bot')) NOT NULL,
		text TEXT NOT NULL,
		match_type TEXT,
		faq_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create chat_messages table: %w", err)
	}
	return nil
}

func createQuestionStatsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS question_stats (
		question_key TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		ask_count INTEGER NOT NULL DEFAULT 0,
		fallback_count INTEGER NOT NULL DEFAULT 0,
		last_match_type TEXT,
		last_faq_id TEXT,
		last_asked_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_question_stats_count ON question_stats(ask_count DESC);
	CREATE INDEX IF NOT EXISTS idx_question_stats_fallback ON question_stats(fallback_count DESC);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create question_stats table: %w", err)
	}
	return nil
}
