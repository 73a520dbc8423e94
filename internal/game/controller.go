package game

import (
	"errors"
	"fmt"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/random"
)

var (
	ErrGameOver      = errors.New("game: game is over")
	ErrNotYourTurn   = errors.New("game: not your turn")
	ErrCardNotInHand = errors.New("game: card not in hand")
	ErrPlayInFlight  = errors.New("game: a play is already being resolved")
	ErrUnknownAction = errors.New("game: unknown action")
	ErrNotStarted    = errors.New("game: not started")
)

// ActionKind enumerates the transitions understood by Controller.Step.
type ActionKind string

const (
	ActionDeal           ActionKind = "deal"
	ActionPlayCard       ActionKind = "play_card"
	ActionOpponentPlay   ActionKind = "opponent_play"
	ActionSetMarketEvent ActionKind = "set_market_event"
)

// Action is one input to the state machine.
type Action struct {
	Kind   ActionKind
	CardID string             // ActionPlayCard
	Event  domain.MarketEvent // ActionSetMarketEvent
}

// Deal returns the action that starts a fresh game.
func Deal() Action { return Action{Kind: ActionDeal} }

// PlayCard returns the action for a human play.
func PlayCard(cardID string) Action { return Action{Kind: ActionPlayCard, CardID: cardID} }

// OpponentPlay returns the action for the scripted whale's play.
func OpponentPlay() Action { return Action{Kind: ActionOpponentPlay} }

// SetMarketEvent returns the action that installs a new market event.
func SetMarketEvent(ev domain.MarketEvent) Action {
	return Action{Kind: ActionSetMarketEvent, Event: ev}
}

// Controller is the turn state machine. Step is deterministic for a given
// random source: the source decides deals, replenishment draws and the
// whale's card choice.
type Controller struct {
	catalog *Catalog
	src     random.Source
}

// NewController returns a Controller drawing from catalog with src.
func NewController(catalog *Catalog, src random.Source) *Controller {
	return &Controller{catalog: catalog, src: src}
}

// Step applies a to s and returns the next state. s is never modified.
func (c *Controller) Step(s domain.GameState, a Action) (domain.GameState, error) {
	switch a.Kind {
	case ActionDeal:
		return c.deal(), nil
	case ActionPlayCard:
		return c.playCard(s, a.CardID)
	case ActionOpponentPlay:
		return c.opponentPlay(s)
	case ActionSetMarketEvent:
		return c.setMarketEvent(s, a.Event)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}
}

func (c *Controller) deal() domain.GameState {
	return domain.GameState{
		PlayerHP:     InitialHP,
		OpponentHP:   InitialHP,
		PlayerHand:   c.catalog.Draw(c.src, InitialHandSize),
		OpponentHand: c.catalog.Draw(c.src, InitialHandSize),
		CurrentTurn:  domain.SidePlayer,
		Phase:        domain.PhasePlayerTurn,
		History:      []string{"Whale Protocol Online. LFG!"},
	}
}

func (c *Controller) playCard(s domain.GameState, cardID string) (domain.GameState, error) {
	if err := checkPhase(s, domain.PhasePlayerTurn); err != nil {
		return s, err
	}
	idx := indexOf(s.PlayerHand, cardID)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
	}
	return c.strike(s, domain.SidePlayer, idx), nil
}

func (c *Controller) opponentPlay(s domain.GameState) (domain.GameState, error) {
	if err := checkPhase(s, domain.PhaseOpponentTurn); err != nil {
		return s, err
	}
	if len(s.OpponentHand) == 0 {
		return s, fmt.Errorf("%w: whale hand is empty", ErrCardNotInHand)
	}
	return c.strike(s, domain.SideOpponent, c.src.IntN(len(s.OpponentHand))), nil
}

func (c *Controller) setMarketEvent(s domain.GameState, ev domain.MarketEvent) (domain.GameState, error) {
	if s.Phase == "" {
		return s, ErrNotStarted
	}
	if s.IsGameOver {
		return s, ErrGameOver
	}
	next := s.Clone()
	next.MarketEvent = &ev
	next.History = append(next.History, fmt.Sprintf("[MARKET] %s: %s", ev.Name, ev.Description))
	return next, nil
}

// strike resolves the card at idx of attacker's hand against the defender,
// replenishes the attacker's hand and advances the phase.
func (c *Controller) strike(s domain.GameState, attacker domain.Side, idx int) domain.GameState {
	next := s.Clone()
	defender := attacker.Other()

	hand := next.Hand(attacker)
	card := hand[idx]
	res := Resolve(attacker, card, next.HP(defender), next.Hand(defender), next.MarketEvent)

	hand = append(hand[:idx:idx], hand[idx+1:]...)
	if len(hand) < HandFloor {
		hand = append(hand, c.catalog.Draw(c.src, HandFloor-len(hand))...)
	}

	if attacker == domain.SidePlayer {
		next.PlayerHand = hand
		next.OpponentHP = res.DefenderHP
	} else {
		next.OpponentHand = hand
		next.PlayerHP = res.DefenderHP
	}
	next.History = append(next.History, res.Log)
	next.CurrentTurn = defender

	if res.DefenderHP == 0 {
		next.Phase = domain.PhaseGameOver
		next.IsGameOver = true
		next.Winner = attacker
		return next
	}
	if defender == domain.SidePlayer {
		next.Phase = domain.PhasePlayerTurn
	} else {
		next.Phase = domain.PhaseOpponentTurn
	}
	return next
}

func checkPhase(s domain.GameState, want domain.Phase) error {
	switch {
	case s.Phase == "":
		return ErrNotStarted
	case s.IsGameOver:
		return ErrGameOver
	case s.Phase != want:
		return ErrNotYourTurn
	}
	return nil
}

func indexOf(hand []domain.Card, id string) int {
	for i, c := range hand {
		if c.ID == id {
			return i
		}
	}
	return -1
}
