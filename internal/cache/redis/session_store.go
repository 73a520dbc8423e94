package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// SessionStore implements domain.SessionStore with one string key per
// session holding the verified address.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore creates a SessionStore with the given session lifetime.
func NewSessionStore(c *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: c.rdb, ttl: ttl}
}

func sessionKey(session string) string {
	return "whalebounty:session:" + session
}

func (s *SessionStore) SetAddress(ctx context.Context, session, address string) error {
	if err := s.rdb.Set(ctx, sessionKey(session), address, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set session address: %w", err)
	}
	return nil
}

func (s *SessionStore) GetAddress(ctx context.Context, session string) (string, error) {
	addr, err := s.rdb.Get(ctx, sessionKey(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get session address: %w", err)
	}
	return addr, nil
}

func (s *SessionStore) Clear(ctx context.Context, session string) error {
	if err := s.rdb.Del(ctx, sessionKey(session)).Err(); err != nil {
		return fmt.Errorf("redis: clear session: %w", err)
	}
	return nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
