package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/random"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/market-event", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientDecodesEvent(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"name":"FLIPPENING","description":"ETH passes BTC.","effect":"BULLISH","impactMultiplier":1.9}`)
	ev, err := NewClient(srv.URL+"/", "k", time.Second).NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MarketEvent{
		Name: "FLIPPENING", Description: "ETH passes BTC.", Effect: domain.EffectBullish, ImpactMultiplier: 1.9,
	}, ev)
}

func TestClientRejectsBadEvents(t *testing.T) {
	cases := map[string]string{
		"low multiplier":  `{"name":"X","effect":"BEARISH","impactMultiplier":0.5}`,
		"huge multiplier": `{"name":"X","effect":"BULLISH","impactMultiplier":1e19}`,
		"over the cap":    `{"name":"X","effect":"BEARISH","impactMultiplier":10.5}`,
		"unknown effect":  `{"name":"X","effect":"SIDEWAYS","impactMultiplier":1.2}`,
		"no name":         `{"effect":"NEUTRAL","impactMultiplier":1.0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			_, err := NewClient(srv.URL, "k", time.Second).NextEvent(context.Background())
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestFallbackUsesLocalGenerator(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, "down")
	src := Fallback{
		Primary: NewClient(srv.URL, "k", time.Second),
		Local:   game.NewGenerator(random.New(1)),
	}
	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.True(t, ev.Effect.Valid())
	assert.GreaterOrEqual(t, ev.ImpactMultiplier, 1.0)
}
