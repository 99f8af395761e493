// Package postgres provides a PostgreSQL-backed implementation of
// [transcript.Store] and [transcript.UserStore].
//
// Turns are stored in a per-conversation sequence table rather than an
// embedded document array; the (conversation_id, seq) primary key preserves
// insertion order and makes the "last N turns" context-window query an index
// walk. [Migrate] installs the schema idempotently.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	conv, _ := store.CreateConversation(ctx, userID, transcript.ModeCasual, "")
//	_, _ = store.AppendTurn(ctx, conv.ID, transcript.RoleUser, "hello", nil)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    email       TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlConversations = `
CREATE TABLE IF NOT EXISTS conversations (
    id            TEXT         PRIMARY KEY,
    user_id       TEXT         NOT NULL REFERENCES users (id),
    mode          TEXT         NOT NULL,
    tts_provider  TEXT         NOT NULL DEFAULT '',
    is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
    started_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
    ON conversations (user_id, updated_at DESC);

CREATE INDEX IF NOT EXISTS idx_conversations_active
    ON conversations (is_active);
`

const ddlTurns = `
CREATE TABLE IF NOT EXISTS conversation_turns (
    conversation_id  TEXT         NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
    seq              BIGINT       NOT NULL,
    role             TEXT         NOT NULL,
    content          TEXT         NOT NULL,
    is_voice         BOOLEAN      NOT NULL DEFAULT FALSE,
    audio_url        TEXT         NOT NULL DEFAULT '',
    duration_ns      BIGINT       NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (conversation_id, seq)
);
`

// Migrate installs the schema. Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlUsers, ddlConversations, ddlTurns} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
