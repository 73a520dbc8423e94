package game

import (
	"net/url"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// TutorialStep is one page of the first-run tutorial.
type TutorialStep struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Tutorial is shown once per wallet before the first game.
var Tutorial = []TutorialStep{
	{"Welcome, Trader!", "Welcome to Whale Bounty. Your mission: Liquidate the Whale's portfolio before they dump yours."},
	{"Your Portfolio", "These are your cards. Power determines your damage. Stability protects you from Whale attacks."},
	{"The Market Pulse", "Pay attention! Bullish events boost your power, while Bearish events make your pumps weak."},
	{"WAGMI!", "Tap a card to Play/Pump. Good luck out there, the market is volatile!"},
}

// ShareText returns the post text for a finished game.
func ShareText(winner domain.Side) string {
	if winner == domain.SidePlayer {
		return "I just liquidated a Crypto Whale on Base! 🐋📈 #WhaleBounty #BaseMiniApp"
	}
	return "Market volatility got me rekt! 📉💀 #WhaleBounty #BaseMiniApp"
}

// ShareURL builds a tweet intent URL linking back to appURL.
func ShareURL(winner domain.Side, appURL string) string {
	q := url.Values{}
	q.Set("text", ShareText(winner))
	q.Set("url", appURL)
	return "https://twitter.com/intent/tweet?" + q.Encode()
}
