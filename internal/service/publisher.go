package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// GameChannelPattern matches every per-game update channel on the bus.
const GameChannelPattern = "whalebounty:game:*"

// GameChannel is the bus channel carrying updates of one game.
func GameChannel(gameID string) string {
	return "whalebounty:game:" + gameID
}

// Publisher fans game updates out to whoever is watching.
type Publisher interface {
	Publish(ctx context.Context, u domain.GameUpdate) error
}

// BusPublisher sends updates through a SignalBus so every instance's
// WebSocket hub can relay them.
type BusPublisher struct {
	bus domain.SignalBus
}

// NewBusPublisher creates a BusPublisher.
func NewBusPublisher(bus domain.SignalBus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// Publish implements Publisher.
func (p *BusPublisher) Publish(ctx context.Context, u domain.GameUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("publisher: marshal update: %w", err)
	}
	return p.bus.Publish(ctx, GameChannel(u.GameID), payload)
}

var _ Publisher = (*BusPublisher)(nil)
