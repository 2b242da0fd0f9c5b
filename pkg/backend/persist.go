package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/angelmondragon/productdesk/pkg/redis"
)

// SessionStorage persists one session per key (a browser session id).
type SessionStorage interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, key string, session *Session) error
	Delete(ctx context.Context, key string) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AuthSessionKey(browserID string) string
}

// RedisSessionStorage keeps sessions as JSON documents in Redis.
type RedisSessionStorage struct {
	store kvStore
	ttl   time.Duration
}

// NewRedisSessionStorage stores sessions for ttl after their last write.
func NewRedisSessionStorage(client *redisclient.Client, ttl time.Duration) (*RedisSessionStorage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisSessionStorage{store: client, ttl: ttl}, nil
}

func (s *RedisSessionStorage) Load(ctx context.Context, key string) (*Session, error) {
	raw, err := s.store.Get(ctx, s.store.AuthSessionKey(key))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decoding stored session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStorage) Save(ctx context.Context, key string, session *Session) error {
	if session == nil {
		return s.Delete(ctx, key)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.store.Set(ctx, s.store.AuthSessionKey(key), payload, s.ttl)
}

func (s *RedisSessionStorage) Delete(ctx context.Context, key string) error {
	return s.store.Del(ctx, s.store.AuthSessionKey(key))
}
