package domain

import "time"

// Side identifies one of the two actors. The zero value means "nobody" and is
// used for Winner while a game is still running.
type Side string

const (
	SidePlayer   Side = "PLAYER"
	SideOpponent Side = "OPPONENT"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

// Phase is the turn controller state.
type Phase string

const (
	PhasePlayerTurn   Phase = "PLAYER_TURN"
	PhaseOpponentTurn Phase = "OPPONENT_TURN"
	PhaseGameOver     Phase = "GAME_OVER"
)

// GameState is the full state of one match. It is produced only by the turn
// controller; callers treat it as a read-only snapshot.
type GameState struct {
	PlayerHP     int          `json:"playerHP"`
	OpponentHP   int          `json:"opponentHP"`
	PlayerHand   []Card       `json:"playerHand"`
	OpponentHand []Card       `json:"opponentHand"`
	CurrentTurn  Side         `json:"currentTurn"`
	Phase        Phase        `json:"phase"`
	MarketEvent  *MarketEvent `json:"marketEvent"`
	History      []string     `json:"history"`
	IsGameOver   bool         `json:"isGameOver"`
	Winner       Side         `json:"winner,omitempty"`
}

// Clone returns a deep copy so that transitions never alias a prior snapshot.
func (s GameState) Clone() GameState {
	out := s
	out.PlayerHand = append([]Card(nil), s.PlayerHand...)
	out.OpponentHand = append([]Card(nil), s.OpponentHand...)
	out.History = append([]string(nil), s.History...)
	if s.MarketEvent != nil {
		ev := *s.MarketEvent
		out.MarketEvent = &ev
	}
	return out
}

// Hand returns the hand belonging to side.
func (s *GameState) Hand(side Side) []Card {
	if side == SidePlayer {
		return s.PlayerHand
	}
	return s.OpponentHand
}

// HP returns the health total of side.
func (s *GameState) HP(side Side) int {
	if side == SidePlayer {
		return s.PlayerHP
	}
	return s.OpponentHP
}

// GameResult is the archived outcome of a finished game.
type GameResult struct {
	GameID     string    `json:"gameId"`
	Address    string    `json:"address,omitempty"`
	Winner     Side      `json:"winner"`
	PlayerHP   int       `json:"playerHP"`
	OpponentHP int       `json:"opponentHP"`
	Turns      int       `json:"turns"`
	History    []string  `json:"history"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LeaderboardEntry aggregates wins per wallet address.
type LeaderboardEntry struct {
	Address string `json:"address"`
	Wins    int64  `json:"wins"`
	Losses  int64  `json:"losses"`
}

// GameUpdate is one state change fanned out to clients watching a game.
type GameUpdate struct {
	GameID string    `json:"gameId"`
	State  GameState `json:"state"`
}
