// Package session owns per-conversation state: the ordered message history
// a turn reads for context and appends its result to. Appends for one
// session are serialized; concurrent turns in different sessions never
// contend.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one utterance in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Conversation is the persisted state of one session.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// Window returns the last n messages, oldest first. A non-positive n
// returns nothing, not everything.
func (c *Conversation) Window(n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Store persists conversations keyed by session id. Get on an unknown
// session returns an empty conversation, not an error. Append must be
// atomic per session: concurrent appends to the same id never interleave
// partially.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Append(ctx context.Context, sessionID string, messages ...Message) error
}
