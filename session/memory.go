package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps conversations in process memory. Suitable for tests and
// single-instance deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]*Conversation)}
}

// Get returns a copy of the conversation so callers can't mutate stored
// state.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[sessionID]
	if !ok {
		return &Conversation{ID: sessionID}, nil
	}

	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out, nil
}

// Append adds messages to the conversation, creating it on first use.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c, ok := s.conversations[sessionID]
	if !ok {
		c = &Conversation{ID: sessionID, CreatedAt: now}
		s.conversations[sessionID] = c
	}
	c.Messages = append(c.Messages, messages...)
	c.UpdatedAt = now
	return nil
}
