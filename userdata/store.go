package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Store persists per-chat user data in Redis. Each chat owns one JSON
// document; saves merge into the existing document so blocks can accumulate
// fields across runs.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for user data documents.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store with its own Redis client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "user_data:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(chatID int64) string {
	return fmt.Sprintf("%s%d", s.prefix, chatID)
}

// Save merges data into the chat's document.
func (s *Store) Save(ctx context.Context, chatID int64, data map[string]any) error {
	key := s.key(chatID)

	existing := make(map[string]any)
	raw, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return fmt.Errorf("error decoding user data for chat %d: %w", chatID, err)
		}
	case errors.Is(err, backend.Nil):
		// first write for this chat
	default:
		return fmt.Errorf("error reading user data for chat %d: %w", chatID, err)
	}

	for k, v := range data {
		existing[k] = v
	}

	encoded, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("error encoding user data for chat %d: %w", chatID, err)
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("error writing user data for chat %d: %w", chatID, err)
	}
	return nil
}

// Retrieve returns the value stored under key in the chat's document. With an
// empty key the whole document is returned. The second return reports whether
// anything was found.
func (s *Store) Retrieve(ctx context.Context, chatID int64, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.key(chatID)).Result()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading user data for chat %d: %w", chatID, err)
	}

	document := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return nil, false, fmt.Errorf("error decoding user data for chat %d: %w", chatID, err)
	}

	if key == "" {
		return document, true, nil
	}
	value, ok := document[key]
	return value, ok, nil
}

// Clear removes the chat's document.
func (s *Store) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("error clearing user data for chat %d: %w", chatID, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
