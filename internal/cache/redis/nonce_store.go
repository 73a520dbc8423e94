package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// NonceStore implements domain.NonceStore. Consumed nonces live in one set
// per session that expires with the session; each issued nonce is its own
// key so it can expire on its own.
type NonceStore struct {
	rdb       *redis.Client
	ttl       time.Duration
	issuedTTL time.Duration
}

// NewNonceStore creates a NonceStore whose per-session consumed sets live for
// ttl after the last consumed nonce and whose issued nonces live for
// issuedTTL.
func NewNonceStore(c *Client, ttl, issuedTTL time.Duration) *NonceStore {
	return &NonceStore{rdb: c.rdb, ttl: ttl, issuedTTL: issuedTTL}
}

func nonceKey(session string) string {
	return "whalebounty:nonces:" + session
}

func issuedKey(session, nonce string) string {
	return "whalebounty:issued:" + session + ":" + nonce
}

func (s *NonceStore) Issue(ctx context.Context, session, nonce string) error {
	if err := s.rdb.Set(ctx, issuedKey(session, nonce), 1, s.issuedTTL).Err(); err != nil {
		return fmt.Errorf("redis: issue nonce: %w", err)
	}
	return nil
}

func (s *NonceStore) IsIssued(ctx context.Context, session, nonce string) (bool, error) {
	n, err := s.rdb.Exists(ctx, issuedKey(session, nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: issued nonce lookup: %w", err)
	}
	return n > 0, nil
}

func (s *NonceStore) IsUsed(ctx context.Context, session, nonce string) (bool, error) {
	used, err := s.rdb.SIsMember(ctx, nonceKey(session), nonce).Result()
	if err != nil {
		return false, fmt.Errorf("redis: nonce lookup: %w", err)
	}
	return used, nil
}

func (s *NonceStore) MarkUsed(ctx context.Context, session, nonce string) error {
	key := nonceKey(session)
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, key, nonce)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Del(ctx, issuedKey(session, nonce))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark nonce used: %w", err)
	}
	return nil
}

var _ domain.NonceStore = (*NonceStore)(nil)
