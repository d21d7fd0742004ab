// Package session keeps server-side session state in Redis and signs the
// cookie that references it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/stremify/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "session:"
)

// Store keeps sessions in Redis with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Get loads the session stored under id. A missing or expired session
// returns nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*model.SessionData, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var data model.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

// Save writes data under id and resets its TTL.
func (s *Store) Save(ctx context.Context, id string, data model.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Regenerate stores data under a fresh id and removes oldID, returning the
// new id. An empty oldID only creates.
func (s *Store) Regenerate(ctx context.Context, oldID string, data model.SessionData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	newID := uuid.NewString()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(newID), raw, s.ttl)
		if oldID != "" {
			pipe.Del(ctx, key(oldID))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("regenerate session: %w", err)
	}
	return newID, nil
}

// Destroy removes the session. Removing a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
