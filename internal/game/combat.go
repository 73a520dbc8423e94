package game

import (
	"fmt"
	"math"

	"github.com/whalebounty/whalebounty/internal/domain"
)

const (
	// InitialHP is the starting health of both sides.
	InitialHP = 100

	// InitialHandSize is the number of cards dealt to each side.
	InitialHandSize = 5

	// HandFloor is the minimum hand size restored after every play.
	HandFloor = 3

	// favourableBoost scales the event multiplier when the event favours the
	// attacker.
	favourableBoost = 1.5

	// unfavourableFactor applies when a bearish event hits the human.
	unfavourableFactor = 0.5

	// stabilityDivisor turns mean defender stability into flat reduction.
	stabilityDivisor = 4.0

	// MaxImpactMultiplier bounds an event's multiplier. Events from outside
	// the local generator are clamped to it.
	MaxImpactMultiplier = 10.0
)

// Strike is the outcome of resolving a single play.
type Strike struct {
	Damage     int
	DefenderHP int
	Log        string
}

// BaseDamage applies the market modifier to card power.
//
// The rule is asymmetric: a bullish event boosts the human and a bearish
// event boosts the whale, but only the human is ever halved (by a bearish
// event). The whale plays at face value under a bullish event.
func BaseDamage(attacker domain.Side, card domain.Card, event *domain.MarketEvent) int {
	damage := card.Power
	if event == nil {
		return damage
	}
	impact := clampImpact(event.ImpactMultiplier)
	switch attacker {
	case domain.SidePlayer:
		switch event.Effect {
		case domain.EffectBullish:
			damage = int(math.Floor(float64(card.Power) * impact * favourableBoost))
		case domain.EffectBearish:
			damage = int(math.Floor(float64(card.Power) * unfavourableFactor))
		}
	case domain.SideOpponent:
		if event.Effect == domain.EffectBearish {
			damage = int(math.Floor(float64(card.Power) * impact * favourableBoost))
		}
	}
	return damage
}

// clampImpact keeps m within [0, MaxImpactMultiplier] so the float to int
// conversion cannot overflow. NaN counts as no effect.
func clampImpact(m float64) float64 {
	if math.IsNaN(m) {
		return 1
	}
	return min(max(m, 0), MaxImpactMultiplier)
}

// MeanStability returns the average stability of hand, or 0 for an empty hand.
func MeanStability(hand []domain.Card) float64 {
	if len(hand) == 0 {
		return 0
	}
	total := 0
	for _, c := range hand {
		total += c.Stability
	}
	return float64(total) / float64(len(hand))
}

// Damage resolves the final damage dealt by card against defenderHand. The
// result is always at least 1.
func Damage(attacker domain.Side, card domain.Card, defenderHand []domain.Card, event *domain.MarketEvent) int {
	raw := float64(BaseDamage(attacker, card, event)) - MeanStability(defenderHand)/stabilityDivisor
	return max(1, int(math.Floor(raw)))
}

// Resolve computes damage, the defender's new health (clamped at 0) and the
// history line for one play.
func Resolve(attacker domain.Side, card domain.Card, defenderHP int, defenderHand []domain.Card, event *domain.MarketEvent) Strike {
	dmg := Damage(attacker, card, defenderHand, event)
	return Strike{
		Damage:     dmg,
		DefenderHP: max(0, defenderHP-dmg),
		Log:        moveText(attacker, card, dmg),
	}
}

func moveText(attacker domain.Side, card domain.Card, dmg int) string {
	if attacker == domain.SidePlayer {
		return fmt.Sprintf("PUMPED %s for %d damage!", card.Symbol, dmg)
	}
	return fmt.Sprintf("Whale DUMPED %s! -%d HP", card.Symbol, dmg)
}
