package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	s3blob "github.com/whalebounty/whalebounty/internal/blob/s3"
	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/notify"
	"github.com/whalebounty/whalebounty/internal/random"
)

// ErrTooManyGames is returned when the host is at its live game limit.
var ErrTooManyGames = errors.New("service: too many active games")

const publishTimeout = 2 * time.Second

// Archiver stores and retrieves finished-game transcripts.
type Archiver interface {
	Archive(ctx context.Context, result domain.GameResult) error
	Load(ctx context.Context, gameID string) (s3blob.Transcript, error)
}

// EventsFactory builds the market event source for one game. src is the
// game's own randomness.
type EventsFactory func(src random.Source) game.EventSource

// GameServiceConfig tunes the game host.
type GameServiceConfig struct {
	Engine   game.EngineConfig
	AppURL   string
	MaxGames int
	// GameTTL is how long an idle game is kept before Sweep drops it.
	GameTTL time.Duration
	// LockTTL bounds how long a distributed round lock may be held.
	LockTTL time.Duration
}

// GameDeps are the collaborators of a GameService. Only Catalog is required.
type GameDeps struct {
	Catalog  *game.Catalog
	Events   EventsFactory
	NewRand  func() (random.Source, error)
	Results  domain.ResultStore
	Prefs    domain.PreferenceStore
	Audit    domain.AuditStore
	Archiver Archiver
	Locks    domain.LockManager
	Updates  Publisher
	Notifier *notify.Notifier
}

// Share is the post offered to the player once a game ends.
type Share struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// GameView is what clients see of a game.
type GameView struct {
	ID    string           `json:"id"`
	State domain.GameState `json:"state"`
	Share *Share           `json:"share,omitempty"`
}

// TutorialView is the tutorial plus whether the wallet has finished it.
type TutorialView struct {
	Steps []game.TutorialStep `json:"steps"`
	Seen  bool                `json:"seen"`
}

type liveGame struct {
	id        string
	owner     string
	engine    *game.Engine
	startedAt time.Time

	mu         sync.Mutex
	turns      int
	lastActive time.Time
	finished   bool
}

// GameService hosts live games, one Engine each, and records results when
// they end.
type GameService struct {
	deps   GameDeps
	cfg    GameServiceConfig
	now    func() time.Time
	logger *slog.Logger

	mu    sync.RWMutex
	games map[string]*liveGame
}

// NewGameService creates a GameService.
func NewGameService(deps GameDeps, cfg GameServiceConfig, logger *slog.Logger) *GameService {
	if deps.Events == nil {
		deps.Events = func(src random.Source) game.EventSource { return game.NewGenerator(src) }
	}
	if deps.NewRand == nil {
		deps.NewRand = func() (random.Source, error) { return random.NewSeeded() }
	}
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = 10_000
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &GameService{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "game_service")),
		games:  make(map[string]*liveGame),
	}
}

// NewGame deals a game owned by owner (a verified wallet address).
func (s *GameService) NewGame(ctx context.Context, owner string) (GameView, error) {
	src, err := s.deps.NewRand()
	if err != nil {
		return GameView{}, fmt.Errorf("game_service: seed: %w", err)
	}

	id := uuid.NewString()
	ctrl := game.NewController(s.deps.Catalog, src)
	engine := game.NewEngine(ctrl, s.deps.Events(src), s.cfg.Engine, s.publisher(id),
		s.logger.With(slog.String("game_id", id)))

	now := s.now()
	g := &liveGame{id: id, owner: owner, engine: engine, startedAt: now, lastActive: now}
	if err := s.register(g); err != nil {
		return GameView{}, err
	}

	st, err := engine.Start(ctx)
	if err != nil {
		s.remove(id)
		return GameView{}, fmt.Errorf("game_service: start: %w", err)
	}

	s.logAudit(ctx, "game_started", map[string]any{"game_id": id, "address": owner})
	s.logger.InfoContext(ctx, "game started",
		slog.String("game_id", id),
		slog.String("address", owner),
	)
	return s.view(id, st), nil
}

// Get returns the current state of a game owned by owner.
func (s *GameService) Get(_ context.Context, id, owner string) (GameView, error) {
	g, err := s.lookup(id, owner)
	if err != nil {
		return GameView{}, err
	}
	return s.view(id, g.engine.State()), nil
}

// Play resolves a full round for cardID. The returned view is always the
// latest state, even alongside an error.
func (s *GameService) Play(ctx context.Context, id, owner, cardID string) (GameView, error) {
	g, err := s.lookup(id, owner)
	if err != nil {
		return GameView{}, err
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, "game:"+id, s.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return s.view(id, g.engine.State()), game.ErrPlayInFlight
		}
		if err != nil {
			return s.view(id, g.engine.State()), fmt.Errorf("game_service: lock %s: %w", id, err)
		}
		defer unlock()
	}

	st, err := g.engine.PlayCard(ctx, cardID)
	if err != nil {
		return s.view(id, st), err
	}

	g.mu.Lock()
	g.turns++
	g.lastActive = s.now()
	g.mu.Unlock()

	if st.IsGameOver {
		s.finish(ctx, g, st)
	}
	return s.view(id, st), nil
}

// Transcript returns the archived record of a finished game.
func (s *GameService) Transcript(ctx context.Context, id string) (domain.GameResult, error) {
	if s.deps.Archiver == nil {
		return domain.GameResult{}, domain.ErrNotFound
	}
	tr, err := s.deps.Archiver.Load(ctx, id)
	if err != nil {
		return domain.GameResult{}, err
	}
	return tr.GameResult, nil
}

// Tutorial returns the tutorial steps and whether address has seen them.
func (s *GameService) Tutorial(ctx context.Context, address string) (TutorialView, error) {
	view := TutorialView{Steps: game.Tutorial}
	if s.deps.Prefs == nil || address == "" {
		return view, nil
	}
	seen, err := s.deps.Prefs.TutorialSeen(ctx, address)
	if err != nil {
		return view, fmt.Errorf("game_service: tutorial seen: %w", err)
	}
	view.Seen = seen
	return view, nil
}

// MarkTutorialSeen records that address finished the tutorial.
func (s *GameService) MarkTutorialSeen(ctx context.Context, address string) error {
	if s.deps.Prefs == nil {
		return nil
	}
	if err := s.deps.Prefs.MarkTutorialSeen(ctx, address); err != nil {
		return fmt.Errorf("game_service: mark tutorial seen: %w", err)
	}
	return nil
}

// Leaderboard returns the top wallets by wins.
func (s *GameService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if s.deps.Results == nil {
		return []domain.LeaderboardEntry{}, nil
	}
	entries, err := s.deps.Results.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("game_service: leaderboard: %w", err)
	}
	return entries, nil
}

// Active returns the number of games held in memory.
func (s *GameService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Sweep drops games idle for longer than GameTTL and returns how many went.
func (s *GameService) Sweep(now time.Time) int {
	if s.cfg.GameTTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, g := range s.games {
		g.mu.Lock()
		idle := now.Sub(g.lastActive)
		g.mu.Unlock()
		if idle > s.cfg.GameTTL {
			delete(s.games, id)
			dropped++
		}
	}
	return dropped
}

// RunJanitor sweeps idle games every interval until ctx is done.
func (s *GameService) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.logger.InfoContext(ctx, "swept idle games",
					slog.Int("dropped", n),
					slog.Int("active", s.Active()),
				)
			}
		}
	}
}

func (s *GameService) register(g *liveGame) error {
	s.mu.Lock()
	full := len(s.games) >= s.cfg.MaxGames
	s.mu.Unlock()
	if full {
		s.Sweep(s.now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.games) >= s.cfg.MaxGames {
		return ErrTooManyGames
	}
	s.games[g.id] = g
	return nil
}

func (s *GameService) remove(id string) {
	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
}

func (s *GameService) lookup(id, owner string) (*liveGame, error) {
	s.mu.RLock()
	g, ok := s.games[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("game_service: game %s: %w", id, domain.ErrNotFound)
	}
	if g.owner != owner {
		return nil, fmt.Errorf("game_service: game %s: %w", id, domain.ErrForbidden)
	}
	return g, nil
}

// finish records a finished game exactly once. Persistence failures are
// logged; the player already has their result.
func (s *GameService) finish(ctx context.Context, g *liveGame, st domain.GameState) {
	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return
	}
	g.finished = true
	result := domain.GameResult{
		GameID:     g.id,
		Address:    g.owner,
		Winner:     st.Winner,
		PlayerHP:   st.PlayerHP,
		OpponentHP: st.OpponentHP,
		Turns:      g.turns,
		History:    st.History,
		StartedAt:  g.startedAt,
		FinishedAt: s.now(),
	}
	g.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(slog.String("game_id", g.id))

	if s.deps.Results != nil {
		if err := s.deps.Results.Insert(ctx, result); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			log.ErrorContext(ctx, "store result failed", slog.String("error", err.Error()))
		}
	}
	if s.deps.Archiver != nil {
		if err := s.deps.Archiver.Archive(ctx, result); err != nil {
			log.ErrorContext(ctx, "archive transcript failed", slog.String("error", err.Error()))
		}
	}
	s.logAudit(ctx, "game_over", map[string]any{
		"game_id": g.id,
		"address": g.owner,
		"winner":  string(result.Winner),
		"turns":   result.Turns,
	})
	if s.deps.Notifier.Enabled() {
		if err := s.deps.Notifier.GameOver(ctx, result); err != nil {
			log.WarnContext(ctx, "game over notification failed", slog.String("error", err.Error()))
		}
	}

	log.InfoContext(ctx, "game over",
		slog.String("winner", string(result.Winner)),
		slog.Int("turns", result.Turns),
	)
}

func (s *GameService) publisher(id string) func(domain.GameState) {
	return func(st domain.GameState) {
		if s.deps.Updates == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.deps.Updates.Publish(ctx, domain.GameUpdate{GameID: id, State: st}); err != nil {
			s.logger.WarnContext(ctx, "publish game update failed",
				slog.String("game_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *GameService) view(id string, st domain.GameState) GameView {
	v := GameView{ID: id, State: st}
	if st.IsGameOver {
		v.Share = &Share{
			Text: game.ShareText(st.Winner),
			URL:  game.ShareURL(st.Winner, s.cfg.AppURL),
		}
	}
	return v
}

func (s *GameService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
