package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/whalebounty/whalebounty/internal/auth"
	"github.com/whalebounty/whalebounty/internal/crypto"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/notify"
	"github.com/whalebounty/whalebounty/internal/server"
	"github.com/whalebounty/whalebounty/internal/server/handler"
	"github.com/whalebounty/whalebounty/internal/server/ws"
	"github.com/whalebounty/whalebounty/internal/service"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 5 * time.Second
)

// ServerMode hosts the HTTP API, the WebSocket hub and the idle-game janitor
// until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode",
		slog.Int("port", a.cfg.Server.Port),
		slog.Bool("redis", deps.SignalBus != nil),
	)

	tokens, err := crypto.NewSessionTokens(a.cfg.Auth.SessionSecret)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(originChecker(a.cfg.Server.CORSOrigins), a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// With Redis, updates go through the bus so every instance's hub sees
	// them; otherwise straight to the local hub.
	var updates service.Publisher = hub
	if deps.SignalBus != nil {
		updates = service.NewBusPublisher(deps.SignalBus)
		g.Go(func() error {
			return hub.Relay(ctx, deps.SignalBus, service.GameChannelPattern)
		})
	}

	games := a.newGameService(deps, updates)
	g.Go(func() error {
		return games.RunJanitor(ctx, janitorInterval)
	})

	authSvc := a.newAuthService(deps)

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Checks, games.Active, a.logger),
		Manifest: handler.NewManifestHandler(a.cfg.Manifest),
		Auth:     handler.NewAuthHandler(authSvc, a.logger),
		Games:    handler.NewGameHandler(games, authSvc, hub, deps.Catalog, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		SecureCookie:   a.cfg.Server.SecureCookie,
		SessionTTL:     a.cfg.Auth.SessionTTL.Duration,
		AuthRateLimit:  a.cfg.Auth.RateLimit,
		AuthRateWindow: a.cfg.Auth.RateWindow.Duration,
	}, handlers, tokens, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// SimulateMode plays a batch of seeded games against the whale and logs the
// outcome. When a server-side wallet is configured it also runs one full
// sign-in first, as a smoke test of the wallet and verifier wiring.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	sim := a.cfg.Simulate
	a.logger.InfoContext(ctx, "starting simulate mode",
		slog.Int("games", sim.Games),
		slog.Int("workers", sim.Workers),
		slog.Uint64("seed", sim.Seed),
	)

	if deps.Provider != nil {
		res, err := a.newAuthService(deps).SignIn(ctx, uuid.NewString())
		if err != nil {
			return fmt.Errorf("simulate mode: sign in: %w", err)
		}
		a.logger.InfoContext(ctx, "wallet sign-in verified", slog.String("address", res.Address))
	}

	report, err := service.Simulate(ctx, deps.Catalog, sim.Games, sim.Workers, sim.Seed, a.logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("simulate mode: %w", err)
	}

	msg := fmt.Sprintf("%d games, player won %.1f%%, %.1f rounds on average",
		report.Games, 100*report.PlayerWinRate(), report.AvgRounds())
	if deps.Notifier.Enabled() {
		if err := deps.Notifier.Notify(ctx, notify.EventSimulation, "Simulation finished", msg); err != nil {
			a.logger.WarnContext(ctx, "simulation notify failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (a *App) newGameService(deps *Dependencies, updates service.Publisher) *service.GameService {
	return service.NewGameService(service.GameDeps{
		Catalog:  deps.Catalog,
		Events:   deps.Events,
		Results:  deps.ResultStore,
		Prefs:    deps.PrefStore,
		Audit:    deps.AuditStore,
		Archiver: deps.Archiver,
		Locks:    deps.LockManager,
		Updates:  updates,
		Notifier: deps.Notifier,
	}, service.GameServiceConfig{
		Engine: game.EngineConfig{
			PlayDelay:     a.cfg.Game.PlayDelay.Duration,
			OpponentDelay: a.cfg.Game.OpponentDelay.Duration,
		},
		AppURL:   a.cfg.Game.AppURL,
		MaxGames: a.cfg.Game.MaxGames,
		GameTTL:  a.cfg.Game.GameTTL.Duration,
	}, a.logger)
}

func (a *App) newAuthService(deps *Dependencies) *service.AuthService {
	flow := auth.NewFlow(authConfig(a.cfg.Auth), deps.Provider, deps.NonceStore, deps.Verifier, a.logger)
	return service.NewAuthService(flow, deps.SessionStore, deps.AuditStore, deps.Notifier, a.logger)
}
