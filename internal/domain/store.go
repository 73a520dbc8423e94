package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// NonceStore records the sign-in nonces issued to a session and those it has
// consumed. Only an issued nonce may be accepted, and a nonce that IsUsed
// reports as consumed must never be accepted again. Issued nonces expire.
type NonceStore interface {
	Issue(ctx context.Context, session, nonce string) error
	IsIssued(ctx context.Context, session, nonce string) (bool, error)
	IsUsed(ctx context.Context, session, nonce string) (bool, error)
	MarkUsed(ctx context.Context, session, nonce string) error
}

// SessionStore holds the verified wallet address for a session. Entries live
// until the session expires.
type SessionStore interface {
	SetAddress(ctx context.Context, session, address string) error
	GetAddress(ctx context.Context, session string) (string, error)
	Clear(ctx context.Context, session string) error
}

// PreferenceStore persists durable per-wallet flags.
type PreferenceStore interface {
	TutorialSeen(ctx context.Context, address string) (bool, error)
	MarkTutorialSeen(ctx context.Context, address string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// ResultStore persists finished games.
type ResultStore interface {
	Insert(ctx context.Context, result GameResult) error
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
