package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/whalebounty/whalebounty/internal/domain"
)

func TestDamageNeverBelowOne(t *testing.T) {
	catalog := DefaultCatalog().Cards()
	usdc := mustCard(t, "usdc")
	hands := [][]domain.Card{
		nil,
		catalog,
		{usdc, usdc, usdc, usdc, usdc},
	}
	events := []*domain.MarketEvent{nil}
	for _, c := range consequences {
		events = append(events, &domain.MarketEvent{Effect: c.effect, ImpactMultiplier: c.impact})
	}

	for _, side := range []domain.Side{domain.SidePlayer, domain.SideOpponent} {
		for _, card := range catalog {
			for _, hand := range hands {
				for _, ev := range events {
					assert.GreaterOrEqual(t, Damage(side, card, hand, ev), 1)
				}
			}
		}
	}
}

func TestEmptyDefenderHandHasZeroStability(t *testing.T) {
	assert.Equal(t, 0.0, MeanStability(nil))
	doge := mustCard(t, "doge")
	assert.Equal(t, doge.Power, Damage(domain.SidePlayer, doge, nil, nil))
}

func TestMarketModifiersAreAsymmetric(t *testing.T) {
	card := domain.Card{Symbol: "X", Power: 10}
	bull := &domain.MarketEvent{Effect: domain.EffectBullish, ImpactMultiplier: 2.0}
	bear := &domain.MarketEvent{Effect: domain.EffectBearish, ImpactMultiplier: 1.5}
	flat := &domain.MarketEvent{Effect: domain.EffectNeutral, ImpactMultiplier: 1.1}

	assert.Equal(t, 30, BaseDamage(domain.SidePlayer, card, bull))
	assert.Equal(t, 5, BaseDamage(domain.SidePlayer, card, bear))
	assert.Equal(t, 10, BaseDamage(domain.SidePlayer, card, flat))

	// The whale is boosted by bearish markets and never halved.
	assert.Equal(t, 22, BaseDamage(domain.SideOpponent, card, bear))
	assert.Equal(t, 10, BaseDamage(domain.SideOpponent, card, bull))
	assert.Equal(t, 10, BaseDamage(domain.SideOpponent, card, flat))
}

func TestHugeMultiplierIsClamped(t *testing.T) {
	card := domain.Card{Symbol: "X", Power: 10}
	capped := int(math.Floor(10 * MaxImpactMultiplier * favourableBoost))

	for _, m := range []float64{1e19, math.Inf(1), math.MaxFloat64} {
		bull := &domain.MarketEvent{Effect: domain.EffectBullish, ImpactMultiplier: m}
		bear := &domain.MarketEvent{Effect: domain.EffectBearish, ImpactMultiplier: m}
		assert.Equal(t, capped, Damage(domain.SidePlayer, card, nil, bull), m)
		assert.Equal(t, capped, Damage(domain.SideOpponent, card, nil, bear), m)
	}

	nan := &domain.MarketEvent{Effect: domain.EffectBullish, ImpactMultiplier: math.NaN()}
	assert.Equal(t, 15, BaseDamage(domain.SidePlayer, card, nan))
}

func TestResolveClampsHealthAndLogs(t *testing.T) {
	pepe := mustCard(t, "pepe")
	btc := mustCard(t, "btc")

	s := Resolve(domain.SidePlayer, pepe, 5, []domain.Card{btc}, nil)
	assert.Equal(t, int(math.Floor(15-9.0/4)), s.Damage)
	assert.Equal(t, 0, s.DefenderHP)
	assert.Equal(t, "PUMPED PEPE for 12 damage!", s.Log)

	s = Resolve(domain.SideOpponent, btc, 50, []domain.Card{pepe}, nil)
	assert.Equal(t, 7, s.Damage)
	assert.Equal(t, 43, s.DefenderHP)
	assert.Equal(t, "Whale DUMPED BTC! -7 HP", s.Log)
}
