package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// newTestClient connects to WHALEBOUNTY_TEST_POSTGRES_DSN and migrates, or
// skips when it is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("WHALEBOUNTY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WHALEBOUNTY_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))
	// Migrations are idempotent.
	require.NoError(t, c.RunMigrations(ctx))
	return c
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/wb?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "wb", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestPreferenceStore(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewPreferenceStore(c.Pool())
	addr := "0x" + uuid.NewString()

	seen, err := s.TutorialSeen(ctx, addr)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkTutorialSeen(ctx, addr))
	require.NoError(t, s.MarkTutorialSeen(ctx, addr))
	seen, err = s.TutorialSeen(ctx, addr)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestResultStoreAndLeaderboard(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewResultStore(c.Pool())
	addr := "0x" + uuid.NewString()
	now := time.Now().UTC()

	r := domain.GameResult{
		GameID: uuid.NewString(), Address: addr, Winner: domain.SidePlayer,
		PlayerHP: 40, OpponentHP: 0, Turns: 9, History: []string{"Whale Protocol Online. LFG!"},
		StartedAt: now.Add(-time.Minute), FinishedAt: now,
	}
	require.NoError(t, s.Insert(ctx, r))
	assert.ErrorIs(t, s.Insert(ctx, r), domain.ErrAlreadyExists)

	board, err := s.Leaderboard(ctx, 1000)
	require.NoError(t, err)
	var found bool
	for _, e := range board {
		if e.Address == addr {
			found = true
			assert.Equal(t, int64(1), e.Wins)
			assert.Equal(t, int64(0), e.Losses)
		}
	}
	assert.True(t, found)
}

func TestAuditStore(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewAuditStore(c.Pool())
	event := "test." + uuid.NewString()

	require.NoError(t, s.Log(ctx, event, map[string]any{"k": "v"}))
	entries, err := s.List(ctx, domain.ListOpts{Limit: 50})
	require.NoError(t, err)

	var got *domain.AuditEntry
	for i := range entries {
		if entries[i].Event == event {
			got = &entries[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "v", got.Detail["k"])
}
