package domain

// MarketEffect categorises a market event.
type MarketEffect string

const (
	EffectBullish MarketEffect = "BULLISH"
	EffectBearish MarketEffect = "BEARISH"
	EffectNeutral MarketEffect = "NEUTRAL"
)

// Valid reports whether e is one of the three known effects.
func (e MarketEffect) Valid() bool {
	return e == EffectBullish || e == EffectBearish || e == EffectNeutral
}

// MarketEvent is a transient damage modifier that lasts for one round. It is
// replaced wholesale after each opponent turn.
type MarketEvent struct {
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Effect           MarketEffect `json:"effect"`
	ImpactMultiplier float64      `json:"impactMultiplier"`
}
