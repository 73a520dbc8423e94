package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/random"
)

func TestDealStartsFreshGame(t *testing.T) {
	ctrl := NewController(DefaultCatalog(), random.New(1))
	s, err := ctrl.Step(domain.GameState{}, Deal())
	require.NoError(t, err)

	assert.Equal(t, InitialHP, s.PlayerHP)
	assert.Equal(t, InitialHP, s.OpponentHP)
	assert.Len(t, s.PlayerHand, InitialHandSize)
	assert.Len(t, s.OpponentHand, InitialHandSize)
	assert.Equal(t, domain.PhasePlayerTurn, s.Phase)
	assert.Equal(t, domain.SidePlayer, s.CurrentTurn)
	assert.Nil(t, s.MarketEvent)
	assert.False(t, s.IsGameOver)
	assert.Equal(t, []string{"Whale Protocol Online. LFG!"}, s.History)
}

func TestPlayAgainstStabilitySix(t *testing.T) {
	ctrl := NewController(flatCatalog(t, 6, 5), random.New(42))
	s, err := ctrl.Step(domain.GameState{}, Deal())
	require.NoError(t, err)

	card := s.PlayerHand[0]
	next, err := ctrl.Step(s, PlayCard(card.ID))
	require.NoError(t, err)

	want := max(1, int(math.Floor(float64(card.Power)-1.5)))
	assert.Equal(t, InitialHP-want, next.OpponentHP)
	assert.Equal(t, domain.PhaseOpponentTurn, next.Phase)
	assert.Equal(t, domain.SideOpponent, next.CurrentTurn)
	assert.Len(t, next.PlayerHand, InitialHandSize-1)

	// The input snapshot is untouched.
	assert.Equal(t, InitialHP, s.OpponentHP)
	assert.Len(t, s.PlayerHand, InitialHandSize)
}

func TestRejectsOutOfTurnAndUnknownCards(t *testing.T) {
	ctrl := NewController(DefaultCatalog(), random.New(2))

	_, err := ctrl.Step(domain.GameState{}, PlayCard("btc"))
	assert.ErrorIs(t, err, ErrNotStarted)

	s, err := ctrl.Step(domain.GameState{}, Deal())
	require.NoError(t, err)

	_, err = ctrl.Step(s, OpponentPlay())
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = ctrl.Step(s, PlayCard("not-a-card"))
	assert.ErrorIs(t, err, ErrCardNotInHand)

	_, err = ctrl.Step(s, Action{Kind: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestPlayerWinsAtExactlyZero(t *testing.T) {
	pepe := mustCard(t, "pepe")
	ctrl := NewController(DefaultCatalog(), random.New(3))
	s := domain.GameState{
		PlayerHP:     InitialHP,
		OpponentHP:   14,
		PlayerHand:   []domain.Card{pepe},
		OpponentHand: []domain.Card{pepe},
		CurrentTurn:  domain.SidePlayer,
		Phase:        domain.PhasePlayerTurn,
	}

	// 15 - 1/4 floors to 14.
	next, err := ctrl.Step(s, PlayCard("pepe"))
	require.NoError(t, err)
	assert.Equal(t, 0, next.OpponentHP)
	assert.Equal(t, domain.PhaseGameOver, next.Phase)
	assert.True(t, next.IsGameOver)
	assert.Equal(t, domain.SidePlayer, next.Winner)

	_, err = ctrl.Step(next, PlayCard(next.PlayerHand[0].ID))
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = ctrl.Step(next, OpponentPlay())
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = ctrl.Step(next, SetMarketEvent(domain.MarketEvent{Name: "X"}))
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestWhaleWins(t *testing.T) {
	doge := mustCard(t, "doge")
	usdc := mustCard(t, "usdc")
	ctrl := NewController(DefaultCatalog(), random.New(4))
	s := domain.GameState{
		PlayerHP:     5,
		OpponentHP:   InitialHP,
		PlayerHand:   []domain.Card{usdc},
		OpponentHand: []domain.Card{doge},
		CurrentTurn:  domain.SideOpponent,
		Phase:        domain.PhaseOpponentTurn,
	}

	next, err := ctrl.Step(s, OpponentPlay())
	require.NoError(t, err)
	assert.Equal(t, 0, next.PlayerHP)
	assert.True(t, next.IsGameOver)
	assert.Equal(t, domain.SideOpponent, next.Winner)
	assert.Equal(t, "Whale DUMPED DOGE! -8 HP", next.History[len(next.History)-1])
}

func TestMarketEventIsRecorded(t *testing.T) {
	ctrl := NewController(DefaultCatalog(), random.New(5))
	s, err := ctrl.Step(domain.GameState{}, Deal())
	require.NoError(t, err)

	ev := domain.MarketEvent{Name: "RUG", Description: "It happened.", Effect: domain.EffectBearish, ImpactMultiplier: 1.5}
	next, err := ctrl.Step(s, SetMarketEvent(ev))
	require.NoError(t, err)
	require.NotNil(t, next.MarketEvent)
	assert.Equal(t, ev, *next.MarketEvent)
	assert.Equal(t, "[MARKET] RUG: It happened.", next.History[len(next.History)-1])
	assert.Equal(t, domain.PhasePlayerTurn, next.Phase)
}

func TestFullGameKeepsInvariants(t *testing.T) {
	ctrl := NewController(DefaultCatalog(), random.New(7))
	gen := NewGenerator(random.New(8))

	s, err := ctrl.Step(domain.GameState{}, Deal())
	require.NoError(t, err)

	for i := 0; i < 500 && !s.IsGameOver; i++ {
		s, err = ctrl.Step(s, SetMarketEvent(gen.Next()))
		require.NoError(t, err)

		s, err = ctrl.Step(s, PlayCard(s.PlayerHand[0].ID))
		require.NoError(t, err)
		assertInvariants(t, s)
		if s.IsGameOver {
			break
		}

		s, err = ctrl.Step(s, OpponentPlay())
		require.NoError(t, err)
		assertInvariants(t, s)
	}
	require.True(t, s.IsGameOver, "game should finish")
	assert.Equal(t, domain.PhaseGameOver, s.Phase)
	if s.Winner == domain.SidePlayer {
		assert.Equal(t, 0, s.OpponentHP)
	} else {
		assert.Equal(t, 0, s.PlayerHP)
	}
}

func assertInvariants(t *testing.T, s domain.GameState) {
	t.Helper()
	assert.GreaterOrEqual(t, len(s.PlayerHand), HandFloor)
	assert.GreaterOrEqual(t, len(s.OpponentHand), HandFloor)
	assert.True(t, s.PlayerHP >= 0 && s.PlayerHP <= InitialHP)
	assert.True(t, s.OpponentHP >= 0 && s.OpponentHP <= InitialHP)
	assert.Equal(t, s.IsGameOver, s.Phase == domain.PhaseGameOver)
}
