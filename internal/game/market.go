package game

import (
	"context"
	"strings"
	"time"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/random"
)

// consequence is the last fragment of an event; it alone decides the effect
// and the impact multiplier.
type consequence struct {
	text   string
	effect domain.MarketEffect
	impact float64
}

var subjects = []string{
	"A rogue MEV bot", "Satoshi's ghost", "An Elon-controlled hamster",
	"A drunk retail trader", "A Base Whale", "The SEC Intern",
	"A 12-year-old dev", "A sentient Smart Contract", "A group of NFT Degens",
	"The ghost of a Liquidated Long", "A rogue AI on Base", "Vitalik's cat",
}

var actions = []string{
	"accidentally fat-fingered", "successfully bridged", "tweeted a blurry photo of",
	"launched a vampire attack on", "lost a bet involving", "found a hidden vault of",
	"accidentally burned", "minted 1 million copies of", "liquidated a 100x position of",
	"shorted the living daylights out of", "pumped a bag of",
}

var targets = []string{
	"10,000 PEPE", "the entire ETH gas supply", "a rare rock NFT",
	"his own seed phrase", "the USDC peg", "a 1-of-1 meme coin",
	"the protocol's liquidity", "Base network's sequencer", "a mountain of DOGE",
	"the CEO's lunch money", "a 50x leveraged long",
}

var consequences = []consequence{
	{"Pure chaos ensued.", domain.EffectNeutral, 1.0},
	{"The charts turned bright green.", domain.EffectBullish, 1.6},
	{"Absolute panic in the Discord.", domain.EffectBearish, 1.4},
	{"Institutions are FOMOing in.", domain.EffectBullish, 1.8},
	{"Retail is getting rekt.", domain.EffectBearish, 1.5},
	{"Gas fees are now higher than the GDP of a small nation.", domain.EffectNeutral, 1.1},
	{"Lambos were ordered immediately.", domain.EffectBullish, 1.4},
	{"Everyone is staring at the 1m chart in silence.", domain.EffectNeutral, 1.0},
	{"A massive green candle appeared from nowhere.", domain.EffectBullish, 2.0},
	{"Stop-losses are being hit like dominoes.", domain.EffectBearish, 1.7},
}

// EventSource produces the next market event. Implementations may block (for
// example on a network call) and must honour ctx.
type EventSource interface {
	NextEvent(ctx context.Context) (domain.MarketEvent, error)
}

// Generator composes market events from four fixed pools. Each call draws one
// entry per pool independently and with replacement; no state is carried
// between calls.
type Generator struct {
	src random.Source
}

// NewGenerator returns a Generator driven by src.
func NewGenerator(src random.Source) *Generator {
	return &Generator{src: src}
}

// Next returns a freshly composed event. It never fails.
func (g *Generator) Next() domain.MarketEvent {
	sub := subjects[g.src.IntN(len(subjects))]
	act := actions[g.src.IntN(len(actions))]
	tar := targets[g.src.IntN(len(targets))]
	con := consequences[g.src.IntN(len(consequences))]

	verb, _, _ := strings.Cut(act, " ")
	return domain.MarketEvent{
		Name:             strings.ToUpper(sub + " " + verb + "s!"),
		Description:      sub + " " + act + " " + tar + ". " + con.text,
		Effect:           con.effect,
		ImpactMultiplier: con.impact,
	}
}

// NextEvent implements EventSource.
func (g *Generator) NextEvent(ctx context.Context) (domain.MarketEvent, error) {
	return g.Next(), nil
}

// DelayedSource wraps an EventSource with a fixed cosmetic latency.
type DelayedSource struct {
	Source EventSource
	Delay  time.Duration
}

// NextEvent waits for Delay (or ctx) and then delegates.
func (d DelayedSource) NextEvent(ctx context.Context) (domain.MarketEvent, error) {
	if err := sleep(ctx, d.Delay); err != nil {
		return domain.MarketEvent{}, err
	}
	return d.Source.NextEvent(ctx)
}

// sleep blocks for d unless ctx finishes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
