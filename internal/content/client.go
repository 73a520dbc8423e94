// Package content fetches market events from an external generator service
// and falls back to the local generator when it misbehaves.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
)

// ErrInvalidEvent is returned when the service answers with an event the
// game cannot use.
var ErrInvalidEvent = errors.New("content: invalid market event")

// Client is the REST client for the event generator. It expects
// GET {baseURL}/v1/market-event to return a MarketEvent as JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. timeout bounds each request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NextEvent implements game.EventSource.
func (c *Client) NextEvent(ctx context.Context) (domain.MarketEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/market-event", nil)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("content: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("content: get market event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.MarketEvent{}, fmt.Errorf("content: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.MarketEvent{}, fmt.Errorf("content: unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var ev domain.MarketEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("content: decode market event: %w", err)
	}
	if err := validate(ev); err != nil {
		return domain.MarketEvent{}, err
	}
	return ev, nil
}

func validate(ev domain.MarketEvent) error {
	switch {
	case strings.TrimSpace(ev.Name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidEvent)
	case !ev.Effect.Valid():
		return fmt.Errorf("%w: effect %q", ErrInvalidEvent, ev.Effect)
	case !(ev.ImpactMultiplier >= 1.0):
		return fmt.Errorf("%w: multiplier %.2f below 1.0", ErrInvalidEvent, ev.ImpactMultiplier)
	case ev.ImpactMultiplier > game.MaxImpactMultiplier:
		return fmt.Errorf("%w: multiplier %g above %.0f", ErrInvalidEvent, ev.ImpactMultiplier, game.MaxImpactMultiplier)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// Fallback tries Primary and answers from Local whenever Primary fails, so a
// round never stalls on the external service.
type Fallback struct {
	Primary game.EventSource
	Local   game.EventSource
	Logger  *slog.Logger
}

// NextEvent implements game.EventSource.
func (f Fallback) NextEvent(ctx context.Context) (domain.MarketEvent, error) {
	ev, err := f.Primary.NextEvent(ctx)
	if err == nil {
		return ev, nil
	}
	if f.Logger != nil {
		f.Logger.WarnContext(ctx, "external market event failed, using local generator",
			slog.String("error", err.Error()),
		)
	}
	return f.Local.NextEvent(ctx)
}
