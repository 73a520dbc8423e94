package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/random"
)

// maxRounds caps a simulated game. Every strike deals at least 1 damage so a
// game cannot outlast 2*InitialHP plays; the cap only guards against bugs.
const maxRounds = 2 * game.InitialHP

// SimulationReport summarises a batch of simulated games.
type SimulationReport struct {
	Games       int           `json:"games"`
	PlayerWins  int64         `json:"playerWins"`
	WhaleWins   int64         `json:"whaleWins"`
	TotalRounds int64         `json:"totalRounds"`
	Elapsed     time.Duration `json:"elapsed"`
}

// PlayerWinRate is the share of games the human side won.
func (r SimulationReport) PlayerWinRate() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.PlayerWins) / float64(r.Games)
}

// AvgRounds is the mean number of player plays per game.
func (r SimulationReport) AvgRounds() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalRounds) / float64(r.Games)
}

// Simulate plays games between a random-card player and the whale on a
// bounded worker pool. Game i is seeded with seed+i so a run is reproducible.
func Simulate(ctx context.Context, catalog *game.Catalog, games, workers int, seed uint64, logger *slog.Logger) (SimulationReport, error) {
	start := time.Now()
	report := SimulationReport{Games: games}

	var playerWins, whaleWins, rounds atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i := 0; i < games; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			winner, n, err := simulateOne(catalog, random.New(seed+uint64(i)))
			if err != nil {
				return fmt.Errorf("simulate: game %d: %w", i, err)
			}
			rounds.Add(int64(n))
			if winner == domain.SidePlayer {
				playerWins.Add(1)
			} else {
				whaleWins.Add(1)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.PlayerWins = playerWins.Load()
	report.WhaleWins = whaleWins.Load()
	report.TotalRounds = rounds.Load()
	report.Elapsed = time.Since(start)

	logger.InfoContext(ctx, "simulation finished",
		slog.Int("games", games),
		slog.Float64("player_win_rate", report.PlayerWinRate()),
		slog.Float64("avg_rounds", report.AvgRounds()),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func simulateOne(catalog *game.Catalog, src random.Source) (domain.Side, int, error) {
	ctrl := game.NewController(catalog, src)
	events := game.NewGenerator(src)

	st, err := ctrl.Step(domain.GameState{}, game.Deal())
	if err != nil {
		return "", 0, err
	}
	if st, err = ctrl.Step(st, game.SetMarketEvent(events.Next())); err != nil {
		return "", 0, err
	}

	for round := 1; round <= maxRounds; round++ {
		card := st.PlayerHand[src.IntN(len(st.PlayerHand))]
		if st, err = ctrl.Step(st, game.PlayCard(card.ID)); err != nil {
			return "", round, err
		}
		if st.IsGameOver {
			return st.Winner, round, nil
		}
		if st, err = ctrl.Step(st, game.OpponentPlay()); err != nil {
			return "", round, err
		}
		if st.IsGameOver {
			return st.Winner, round, nil
		}
		if st, err = ctrl.Step(st, game.SetMarketEvent(events.Next())); err != nil {
			return "", round, err
		}
	}
	return "", maxRounds, fmt.Errorf("no winner after %d rounds", maxRounds)
}
