// Package notify announces game events to operator channels (Discord,
// Telegram). Events can be filtered so a channel only hears what it wants.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// Event types understood by Notify.
const (
	EventGameOver   = "game_over"
	EventSignIn     = "sign_in"
	EventSimulation = "simulation"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every Sender whose event filter
// allows it.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// GameOver announces a finished game.
func (n *Notifier) GameOver(ctx context.Context, r domain.GameResult) error {
	who := r.Address
	if who == "" {
		who = "An anonymous trader"
	}
	title := "Whale liquidated!"
	verdict := "liquidated the whale"
	if r.Winner == domain.SideOpponent {
		title = "Trader rekt"
		verdict = "got dumped on by the whale"
	}
	msg := fmt.Sprintf("%s %s in %d turns (HP %d vs %d). Game %s",
		who, verdict, r.Turns, r.PlayerHP, r.OpponentHP, r.GameID)
	return n.Notify(ctx, EventGameOver, title, msg)
}

// dispatch delivers to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
