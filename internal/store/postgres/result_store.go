package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/whalebounty/whalebounty/internal/domain"
)

const uniqueViolation = "23505"

// ResultStore implements domain.ResultStore on game_results.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a ResultStore backed by pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Insert stores a finished game. A repeated game id yields
// domain.ErrAlreadyExists.
func (s *ResultStore) Insert(ctx context.Context, r domain.GameResult) error {
	history, err := json.Marshal(r.History)
	if err != nil {
		return fmt.Errorf("postgres: marshal history: %w", err)
	}

	const query = `
		INSERT INTO game_results (
			game_id, address, winner, player_hp, opponent_hp, turns,
			history, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		r.GameID, r.Address, string(r.Winner), r.PlayerHP, r.OpponentHP, r.Turns,
		history, r.StartedAt, r.FinishedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert result %s: %w", r.GameID, err)
	}
	return nil
}

// Leaderboard ranks signed-in addresses by wins, then by fewest losses.
func (s *ResultStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT address,
		       COUNT(*) FILTER (WHERE winner = 'PLAYER')   AS wins,
		       COUNT(*) FILTER (WHERE winner = 'OPPONENT') AS losses
		FROM game_results
		WHERE address <> ''
		GROUP BY address
		ORDER BY wins DESC, losses ASC, address ASC
		LIMIT $1`
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.LeaderboardEntry])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan leaderboard: %w", err)
	}
	return entries, nil
}

var _ domain.ResultStore = (*ResultStore)(nil)
