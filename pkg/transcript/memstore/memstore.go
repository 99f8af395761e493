// Package memstore provides a thread-safe, in-memory implementation of
// [transcript.Store] and [transcript.UserStore]. It backs credential-less
// development runs and the orchestrator test suite.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vocalhost/vocalhost/pkg/transcript"
)

// Compile-time assertions that Store satisfies both contracts.
var (
	_ transcript.Store     = (*Store)(nil)
	_ transcript.UserStore = (*Store)(nil)
)

// Store is an in-memory transcript store. All methods are safe for concurrent
// use; the single mutex also serializes appends to the same conversation.
type Store struct {
	mu            sync.RWMutex
	users         map[string]transcript.User
	conversations map[string]*transcript.Conversation

	// now is swappable in tests to control assigned timestamps.
	now func() time.Time
}

// New returns an initialised, empty [Store].
func New() *Store {
	return &Store{
		users:         make(map[string]transcript.User),
		conversations: make(map[string]*transcript.Conversation),
		now:           time.Now,
	}
}

// CreateUser implements [transcript.UserStore].
func (s *Store) CreateUser(ctx context.Context, name, email string) (*transcript.User, error) {
	if name == "" {
		return nil, fmt.Errorf("memstore: create user: %w", transcript.ErrEmptyName)
	}

	u := transcript.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return &u, nil
}

// User implements [transcript.UserStore].
func (s *Store) User(ctx context.Context, id string) (*transcript.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, transcript.ErrNotFound
	}
	return &u, nil
}

// CreateConversation implements [transcript.Store].
func (s *Store) CreateConversation(ctx context.Context, userID string, mode transcript.Mode, ttsProvider string) (*transcript.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, transcript.ErrNotFound
	}

	now := s.now()
	c := &transcript.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Mode:        mode,
		TTSProvider: ttsProvider,
		IsActive:    true,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	s.conversations[c.ID] = c
	return snapshot(c), nil
}

// Conversation implements [transcript.Store].
func (s *Store) Conversation(ctx context.Context, id string) (*transcript.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, transcript.ErrNotFound
	}
	return snapshot(c), nil
}

// ConversationsByUser implements [transcript.Store].
func (s *Store) ConversationsByUser(ctx context.Context, userID string) ([]*transcript.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*transcript.Conversation
	for _, c := range s.conversations {
		if c.UserID != userID {
			continue
		}
		cp := snapshot(c)
		cp.Turns = nil
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// AppendTurn implements [transcript.Store].
func (s *Store) AppendTurn(ctx context.Context, conversationID string, role transcript.Role, content string, md *transcript.TurnMetadata) (*transcript.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, transcript.ErrNotFound
	}

	t := transcript.Turn{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	if md != nil {
		cp := *md
		t.Metadata = &cp
	}

	c.Turns = append(c.Turns, t)
	c.UpdatedAt = t.Timestamp
	return &t, nil
}

// RecentTurns implements [transcript.Store].
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]transcript.Turn, error) {
	if limit <= 0 {
		limit = transcript.DefaultContextWindow
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, transcript.ErrNotFound
	}

	turns := c.Turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return slices.Clone(turns), nil
}

// PruneOlderThan implements [transcript.Store].
func (s *Store) PruneOlderThan(ctx context.Context, conversationID string, keepLast int) error {
	if keepLast < 0 {
		keepLast = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return transcript.ErrNotFound
	}

	if len(c.Turns) > keepLast {
		c.Turns = slices.Clone(c.Turns[len(c.Turns)-keepLast:])
	}
	return nil
}

// SetActive implements [transcript.Store].
func (s *Store) SetActive(ctx context.Context, conversationID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return transcript.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = s.now()
	return nil
}

// DeleteConversation implements [transcript.Store]. The conversation and its
// embedded turns disappear together.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return transcript.ErrNotFound
	}
	delete(s.conversations, conversationID)
	return nil
}

// snapshot returns a deep-enough copy so callers never observe later appends.
func snapshot(c *transcript.Conversation) *transcript.Conversation {
	cp := *c
	cp.Turns = slices.Clone(c.Turns)
	return &cp
}
