package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// Compile-time assertions that Store satisfies both contracts.
var (
	_ transcript.Store     = (*Store)(nil)
	_ transcript.UserStore = (*Store)(nil)
)

// Store is the PostgreSQL transcript store. All methods are safe for
// concurrent use. Appends to the same conversation are serialized by a
// row-level lock on the conversation row.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn and installs the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewFromPool wraps an existing pool. The caller retains ownership of the
// pool's lifetime; Close becomes a no-op.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database connection. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser implements [transcript.UserStore].
func (s *Store) CreateUser(ctx context.Context, name, email string) (*transcript.User, error) {
	if name == "" {
		return nil, fmt.Errorf("postgres: create user: %w", transcript.ErrEmptyName)
	}

	const q = `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	u := transcript.User{ID: uuid.NewString(), Name: name, Email: email}
	if err := s.pool.QueryRow(ctx, q, u.ID, u.Name, u.Email).Scan(&u.CreatedAt); err != nil {
		return nil, fmt.Errorf("postgres: create user: %w", err)
	}
	return &u, nil
}

// User implements [transcript.UserStore].
func (s *Store) User(ctx context.Context, id string) (*transcript.User, error) {
	const q = `SELECT id, name, email, created_at FROM users WHERE id = $1`

	var u transcript.User
	err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, transcript.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return &u, nil
}

// CreateConversation implements [transcript.Store].
func (s *Store) CreateConversation(ctx context.Context, userID string, mode transcript.Mode, ttsProvider string) (*transcript.Conversation, error) {
	if _, err := s.User(ctx, userID); err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO conversations (id, user_id, mode, tts_provider)
		VALUES ($1, $2, $3, $4)
		RETURNING is_active, started_at, updated_at`

	c := transcript.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Mode:        mode,
		TTSProvider: ttsProvider,
	}
	err := s.pool.QueryRow(ctx, q, c.ID, c.UserID, string(c.Mode), c.TTSProvider).
		Scan(&c.IsActive, &c.StartedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: create conversation: %w", err)
	}
	return &c, nil
}

// Conversation implements [transcript.Store]. The returned conversation
// carries its full turn log in insertion order.
func (s *Store) Conversation(ctx context.Context, id string) (*transcript.Conversation, error) {
	const q = `
		SELECT id, user_id, mode, tts_provider, is_active, started_at, updated_at
		FROM   conversations
		WHERE  id = $1`

	var c transcript.Conversation
	var mode string
	err := s.pool.QueryRow(ctx, q, id).
		Scan(&c.ID, &c.UserID, &mode, &c.TTSProvider, &c.IsActive, &c.StartedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, transcript.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get conversation: %w", err)
	}
	c.Mode = transcript.Mode(mode)

	const turnsQ = `
		SELECT role, content, is_voice, audio_url, duration_ns, created_at
		FROM   conversation_turns
		WHERE  conversation_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, turnsQ, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get turns: %w", err)
	}
	c.Turns, err = collectTurns(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: get turns: %w", err)
	}
	return &c, nil
}

// ConversationsByUser implements [transcript.Store].
func (s *Store) ConversationsByUser(ctx context.Context, userID string) ([]*transcript.Conversation, error) {
	const q = `
		SELECT id, user_id, mode, tts_provider, is_active, started_at, updated_at
		FROM   conversations
		WHERE  user_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list conversations: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*transcript.Conversation, error) {
		var c transcript.Conversation
		var mode string
		if err := row.Scan(&c.ID, &c.UserID, &mode, &c.TTSProvider, &c.IsActive, &c.StartedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Mode = transcript.Mode(mode)
		return &c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list conversations: %w", err)
	}
	return result, nil
}

// AppendTurn implements [transcript.Store]. The conversation row is locked
// for the duration of the transaction so two appends to the same conversation
// can never interleave their sequence numbers.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, role transcript.Role, content string, md *transcript.TurnMetadata) (*transcript.Turn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: append turn: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockQ = `SELECT 1 FROM conversations WHERE id = $1 FOR UPDATE`
	var one int
	err = tx.QueryRow(ctx, lockQ, conversationID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, transcript.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: append turn: lock: %w", err)
	}

	t := transcript.Turn{Role: role, Content: content}
	var isVoice bool
	var audioURL string
	var durationNS int64
	if md != nil {
		cp := *md
		t.Metadata = &cp
		isVoice = md.IsVoice
		audioURL = md.AudioURL
		durationNS = md.Duration.Nanoseconds()
	}

	const insertQ = `
		INSERT INTO conversation_turns
		    (conversation_id, seq, role, content, is_voice, audio_url, duration_ns)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6
		FROM   conversation_turns
		WHERE  conversation_id = $1
		RETURNING created_at`

	err = tx.QueryRow(ctx, insertQ, conversationID, string(role), content, isVoice, audioURL, durationNS).
		Scan(&t.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("postgres: append turn: insert: %w", err)
	}

	const touchQ = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, touchQ, conversationID, t.Timestamp); err != nil {
		return nil, fmt.Errorf("postgres: append turn: touch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: append turn: commit: %w", err)
	}
	return &t, nil
}

// RecentTurns implements [transcript.Store]. The inner query walks the
// (conversation_id, seq) index backwards for the window, the outer query
// restores original order.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]transcript.Turn, error) {
	if limit <= 0 {
		limit = transcript.DefaultContextWindow
	}
	if err := s.exists(ctx, conversationID); err != nil {
		return nil, err
	}

	const q = `
		SELECT role, content, is_voice, audio_url, duration_ns, created_at
		FROM (
		    SELECT seq, role, content, is_voice, audio_url, duration_ns, created_at
		    FROM   conversation_turns
		    WHERE  conversation_id = $1
		    ORDER  BY seq DESC
		    LIMIT  $2
		) recent
		ORDER BY seq`

	rows, err := s.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent turns: %w", err)
	}
	turns, err := collectTurns(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent turns: %w", err)
	}
	return turns, nil
}

// PruneOlderThan implements [transcript.Store].
func (s *Store) PruneOlderThan(ctx context.Context, conversationID string, keepLast int) error {
	if keepLast < 0 {
		keepLast = 0
	}
	if err := s.exists(ctx, conversationID); err != nil {
		return err
	}

	const q = `
		DELETE FROM conversation_turns
		WHERE  conversation_id = $1
		  AND  seq <= (
		      SELECT COALESCE(MAX(seq), 0) - $2
		      FROM   conversation_turns
		      WHERE  conversation_id = $1
		  )`

	if _, err := s.pool.Exec(ctx, q, conversationID, keepLast); err != nil {
		return fmt.Errorf("postgres: prune: %w", err)
	}
	return nil
}

// SetActive implements [transcript.Store].
func (s *Store) SetActive(ctx context.Context, conversationID string, active bool) error {
	const q = `UPDATE conversations SET is_active = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, conversationID, active)
	if err != nil {
		return fmt.Errorf("postgres: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return transcript.ErrNotFound
	}
	return nil
}

// DeleteConversation implements [transcript.Store]. The ON DELETE CASCADE on
// conversation_turns removes the turn log in the same statement.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	const q = `DELETE FROM conversations WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, conversationID)
	if err != nil {
		return fmt.Errorf("postgres: delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return transcript.ErrNotFound
	}
	return nil
}

// exists reports ErrNotFound when conversationID has no row.
func (s *Store) exists(ctx context.Context, conversationID string) error {
	const q = `SELECT 1 FROM conversations WHERE id = $1`
	var one int
	err := s.pool.QueryRow(ctx, q, conversationID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return transcript.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lookup conversation: %w", err)
	}
	return nil
}

// collectTurns scans pgx rows into a slice of Turn values.
func collectTurns(rows pgx.Rows) ([]transcript.Turn, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Turn, error) {
		var (
			t          transcript.Turn
			role       string
			isVoice    bool
			audioURL   string
			durationNS int64
		)
		if err := row.Scan(&role, &t.Content, &isVoice, &audioURL, &durationNS, &t.Timestamp); err != nil {
			return transcript.Turn{}, err
		}
		t.Role = transcript.Role(role)
		if isVoice || audioURL != "" || durationNS != 0 {
			t.Metadata = &transcript.TurnMetadata{
				IsVoice:  isVoice,
				AudioURL: audioURL,
				Duration: time.Duration(durationNS),
			}
		}
		return t, nil
	})
}
