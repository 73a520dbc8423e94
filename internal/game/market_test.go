package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/random"
)

func TestConsequenceMultipliersAtLeastOne(t *testing.T) {
	for _, c := range consequences {
		assert.GreaterOrEqual(t, c.impact, 1.0, c.text)
		assert.True(t, c.effect.Valid(), c.text)
	}
}

func TestGeneratorComposesFromPools(t *testing.T) {
	g := NewGenerator(random.NewSequence(0, 0, 0, 1))
	ev := g.Next()

	assert.Equal(t, "A ROGUE MEV BOT ACCIDENTALLYS!", ev.Name)
	assert.Equal(t, "A rogue MEV bot accidentally fat-fingered 10,000 PEPE. The charts turned bright green.", ev.Description)
	assert.Equal(t, domain.EffectBullish, ev.Effect)
	assert.Equal(t, 1.6, ev.ImpactMultiplier)
}

func TestHundredGenerationsAreWellFormed(t *testing.T) {
	g := NewGenerator(random.New(99))
	for i := 0; i < 100; i++ {
		ev, err := g.NextEvent(context.Background())
		require.NoError(t, err)
		assert.Contains(t, []domain.MarketEffect{domain.EffectBullish, domain.EffectBearish, domain.EffectNeutral}, ev.Effect)
		assert.GreaterOrEqual(t, ev.ImpactMultiplier, 1.0)
		assert.NotEmpty(t, ev.Name)
		assert.NotEmpty(t, ev.Description)
	}
}

func TestDelayedSourceHonoursContext(t *testing.T) {
	src := DelayedSource{Source: NewGenerator(random.New(1)), Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.NextEvent(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
