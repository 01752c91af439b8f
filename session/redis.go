package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists conversations in Redis, one list of JSON messages per
// session. RPUSH keeps appends atomic per session without client-side
// locking.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOptions configuration for the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "cityagent:"
	TTL      time.Duration // session expiration, default 0 (no expiration)
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cityagent:"
	}

	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

func (s *RedisStore) messagesKey(sessionID string) string {
	return fmt.Sprintf("%ssession:%s:messages", s.prefix, sessionID)
}

// Get loads the full conversation for a session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	items, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	c := &Conversation{ID: sessionID}
	for _, item := range items {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message in session %s: %w", sessionID, err)
		}
		c.Messages = append(c.Messages, m)
	}
	if len(c.Messages) > 0 {
		c.CreatedAt = c.Messages[0].CreatedAt
		c.UpdatedAt = c.Messages[len(c.Messages)-1].CreatedAt
	}
	return c, nil
}

// Append pushes messages onto the session list in one pipeline.
func (s *RedisStore) Append(ctx context.Context, sessionID string, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		encoded = append(encoded, data)
	}

	key := s.messagesKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, encoded...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to session %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
