package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// EngineConfig holds the pacing delays of a round. Both are cosmetic; zero
// disables them.
type EngineConfig struct {
	// PlayDelay is the pause between accepting a play and applying damage.
	PlayDelay time.Duration
	// OpponentDelay is the pause before the whale answers.
	OpponentDelay time.Duration
}

// DefaultEngineConfig matches the pacing of the web client animations.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PlayDelay:     600 * time.Millisecond,
		OpponentDelay: 1500 * time.Millisecond,
	}
}

// Engine owns the state of one game and drives full rounds through the
// Controller. Only one round may be in flight at a time.
type Engine struct {
	ctrl     *Controller
	events   EventSource
	cfg      EngineConfig
	onChange func(domain.GameState)
	logger   *slog.Logger

	mu       sync.Mutex
	state    domain.GameState
	inFlight bool
}

// NewEngine creates an Engine. onChange, if non-nil, receives a snapshot after
// every transition; it is called without the engine lock held.
func NewEngine(ctrl *Controller, events EventSource, cfg EngineConfig, onChange func(domain.GameState), logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ctrl:     ctrl,
		events:   events,
		cfg:      cfg,
		onChange: onChange,
		logger:   logger.With(slog.String("component", "game_engine")),
	}
}

// State returns a snapshot of the current state.
func (e *Engine) State() domain.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Start deals a fresh game and installs the opening market event. It may be
// called again to restart, except while a round is in flight.
func (e *Engine) Start(ctx context.Context) (domain.GameState, error) {
	if err := e.begin(); err != nil {
		return e.State(), err
	}
	defer e.end()

	ctx = context.WithoutCancel(ctx)
	if _, err := e.apply(Deal()); err != nil {
		return e.State(), err
	}
	return e.nextMarketEvent(ctx)
}

// PlayCard resolves a human play of cardID and, unless the game ends, the
// whale's answer and the next market event. A round cannot be cancelled once
// accepted; ctx only scopes logging and the event source.
func (e *Engine) PlayCard(ctx context.Context, cardID string) (domain.GameState, error) {
	e.mu.Lock()
	switch {
	case e.inFlight:
		e.mu.Unlock()
		return e.State(), ErrPlayInFlight
	case e.state.Phase == "":
		e.mu.Unlock()
		return e.State(), ErrNotStarted
	case e.state.IsGameOver:
		e.mu.Unlock()
		return e.State(), ErrGameOver
	case e.state.Phase != domain.PhasePlayerTurn:
		e.mu.Unlock()
		return e.State(), ErrNotYourTurn
	case indexOf(e.state.PlayerHand, cardID) < 0:
		e.mu.Unlock()
		return e.State(), fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
	}
	e.inFlight = true
	e.mu.Unlock()
	defer e.end()

	ctx = context.WithoutCancel(ctx)

	_ = sleep(ctx, e.cfg.PlayDelay)
	s, err := e.apply(PlayCard(cardID))
	if err != nil || s.IsGameOver {
		return s, err
	}

	_ = sleep(ctx, e.cfg.OpponentDelay)
	s, err = e.apply(OpponentPlay())
	if err != nil || s.IsGameOver {
		return s, err
	}

	return e.nextMarketEvent(ctx)
}

func (e *Engine) nextMarketEvent(ctx context.Context) (domain.GameState, error) {
	ev, err := e.events.NextEvent(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "market event unavailable",
			slog.String("error", err.Error()),
		)
		return e.State(), fmt.Errorf("game: next market event: %w", err)
	}
	return e.apply(SetMarketEvent(ev))
}

// apply runs one transition under the lock and notifies the observer.
func (e *Engine) apply(a Action) (domain.GameState, error) {
	e.mu.Lock()
	next, err := e.ctrl.Step(e.state, a)
	if err != nil {
		e.mu.Unlock()
		return e.State(), err
	}
	e.state = next
	snap := next.Clone()
	e.mu.Unlock()

	if e.onChange != nil {
		e.onChange(snap.Clone())
	}
	return snap, nil
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return ErrPlayInFlight
	}
	e.inFlight = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}
