// Package transcript defines the conversation data model and the Store
// contract for the durable, append-only turn log.
//
// A Store is the sole writer of turn data. Turns are appended to the end of a
// conversation's log and never edited or reordered; the LLM context window is
// always a suffix of the log, so recent dialogue is what the model sees and
// the transcript stays auditable.
//
// Implementations must be safe for concurrent use and must serialize
// concurrent appends to the same conversation id.
package transcript

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a conversation or user id does not resolve to
// an existing record.
var ErrNotFound = errors.New("transcript: not found")

// ErrEmptyName is returned by CreateUser when the name is empty.
var ErrEmptyName = errors.New("transcript: user name must not be empty")

// DefaultContextWindow is the number of trailing turns supplied to the LLM
// when the caller does not specify a limit.
const DefaultContextWindow = 20

// Store is the durable ordered log of turns per conversation.
type Store interface {
	// CreateConversation starts an empty, active conversation owned by userID.
	// ttsProvider optionally pins a TTS backend for this conversation.
	// Returns ErrNotFound if userID does not resolve to an existing user.
	CreateConversation(ctx context.Context, userID string, mode Mode, ttsProvider string) (*Conversation, error)

	// Conversation returns the conversation with its full turn log.
	// Returns ErrNotFound if id is unknown.
	Conversation(ctx context.Context, id string) (*Conversation, error)

	// ConversationsByUser returns all conversations owned by userID, most
	// recently updated first, without their turn logs.
	ConversationsByUser(ctx context.Context, userID string) ([]*Conversation, error)

	// AppendTurn appends a turn to the end of the conversation's log and
	// advances UpdatedAt. Returns the durable representation including its
	// assigned timestamp. Returns ErrNotFound if the conversation is absent.
	AppendTurn(ctx context.Context, conversationID string, role Role, content string, md *TurnMetadata) (*Turn, error)

	// RecentTurns returns the last limit turns in original order, oldest of
	// the selected window first. Fewer than limit exist → all are returned.
	// limit <= 0 means DefaultContextWindow.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// PruneOlderThan irreversibly truncates the log to its last keepLast
	// turns. Memory-bounding utility only; never on the turn hot path.
	PruneOlderThan(ctx context.Context, conversationID string, keepLast int) error

	// SetActive toggles the conversation's active flag.
	SetActive(ctx context.Context, conversationID string, active bool) error

	// DeleteConversation removes the conversation and all of its turns
	// atomically. Returns ErrNotFound if the conversation is absent.
	DeleteConversation(ctx context.Context, conversationID string) error
}

// UserStore manages the demo account records that own conversations.
type UserStore interface {
	// CreateUser registers a new user. name must be non-empty; email is
	// optional and may be empty. Returns ErrEmptyName on an empty name.
	CreateUser(ctx context.Context, name, email string) (*User, error)

	// User returns the user with the given id, or ErrNotFound.
	User(ctx context.Context, id string) (*User, error)
}
