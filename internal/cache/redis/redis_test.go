package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// newTestClient connects to WHALEBOUNTY_TEST_REDIS_ADDR or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("WHALEBOUNTY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WHALEBOUNTY_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNonceStoreSurvivesNewStoreInstance(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	session, nonce := uuid.NewString(), uuid.NewString()

	require.NoError(t, NewNonceStore(c, time.Minute, time.Minute).MarkUsed(ctx, session, nonce))

	reopened := NewNonceStore(c, time.Minute, time.Minute)
	used, err := reopened.IsUsed(ctx, session, nonce)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = reopened.IsUsed(ctx, uuid.NewString(), nonce)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestNonceStoreIssuedPerSession(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewNonceStore(c, time.Minute, time.Minute)
	session, nonce := uuid.NewString(), uuid.NewString()

	require.NoError(t, s.Issue(ctx, session, nonce))
	ok, err := s.IsIssued(ctx, session, nonce)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsIssued(ctx, uuid.NewString(), nonce)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkUsed(ctx, session, nonce))
	ok, err = s.IsIssued(ctx, session, nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewSessionStore(c, time.Minute)
	session := uuid.NewString()

	_, err := s.GetAddress(ctx, session)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, s.SetAddress(ctx, session, "0xabc"))
	addr, err := s.GetAddress(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)

	require.NoError(t, s.Clear(ctx, session))
	_, err = s.GetAddress(ctx, session)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRateLimiterWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)
	key := uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockIsExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)
	key := uuid.NewString()

	unlock, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	again, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestSignalBusDelivers(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus := NewSignalBus(c)
	channel := "whalebounty:test:" + uuid.NewString()

	ch, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, channel, []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("game:*"))
	assert.False(t, hasPattern("game:123"))
}
