package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// PreferenceStore implements domain.PreferenceStore on player_preferences.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore creates a PreferenceStore backed by pool.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

func (s *PreferenceStore) TutorialSeen(ctx context.Context, address string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT tutorial_seen FROM player_preferences WHERE address = $1`, address,
	).Scan(&seen)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: tutorial seen %s: %w", address, err)
	}
	return seen, nil
}

func (s *PreferenceStore) MarkTutorialSeen(ctx context.Context, address string) error {
	const query = `
		INSERT INTO player_preferences (address, tutorial_seen, updated_at)
		VALUES ($1, TRUE, NOW())
		ON CONFLICT (address) DO UPDATE SET tutorial_seen = TRUE, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, address); err != nil {
		return fmt.Errorf("postgres: mark tutorial seen %s: %w", address, err)
	}
	return nil
}

var _ domain.PreferenceStore = (*PreferenceStore)(nil)
