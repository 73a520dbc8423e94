package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/server/middleware"
	"github.com/whalebounty/whalebounty/internal/service"
)

// GameService defines the methods that the game handler requires from the
// service layer.
type GameService interface {
	NewGame(ctx context.Context, owner string) (service.GameView, error)
	Get(ctx context.Context, id, owner string) (service.GameView, error)
	Play(ctx context.Context, id, owner, cardID string) (service.GameView, error)
	Transcript(ctx context.Context, id string) (domain.GameResult, error)
	Tutorial(ctx context.Context, address string) (service.TutorialView, error)
	MarkTutorialSeen(ctx context.Context, address string) error
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Watcher attaches a WebSocket client to a game. snapshot is read once the
// client is attached and sent as its first frame.
type Watcher interface {
	Serve(w http.ResponseWriter, r *http.Request, gameID string, snapshot func(context.Context) (domain.GameState, error))
}

// Sessions resolves the wallet signed in on a session.
type Sessions interface {
	Address(ctx context.Context, session string) (string, error)
}

// GameHandler serves game, tutorial and leaderboard endpoints.
type GameHandler struct {
	games    GameService
	sessions Sessions
	watcher  Watcher
	catalog  *game.Catalog
	logger   *slog.Logger
}

// NewGameHandler creates a GameHandler. watcher may be nil to disable live
// updates.
func NewGameHandler(games GameService, sessions Sessions, watcher Watcher, catalog *game.Catalog, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		games:    games,
		sessions: sessions,
		watcher:  watcher,
		catalog:  catalog,
		logger:   logger,
	}
}

// wallet returns the signed-in address or writes a 401.
func (h *GameHandler) wallet(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr, err := h.sessions.Address(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	return addr, true
}

// Create deals a new game for the signed-in wallet.
// POST /api/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.wallet(w, r)
	if !ok {
		return
	}
	view, err := h.games.NewGame(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get returns the current state of a game.
// GET /api/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.wallet(w, r)
	if !ok {
		return
	}
	view, err := h.games.Get(r.Context(), r.PathValue("id"), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type playRequest struct {
	CardID string `json:"cardId"`
}

// Play resolves a full round: the player's card, the whale's answer and the
// next market event. The response carries the state after the round.
// POST /api/games/{id}/play
func (h *GameHandler) Play(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.wallet(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CardID == "" {
		writeError(w, http.StatusBadRequest, "cardId is required")
		return
	}

	view, err := h.games.Play(r.Context(), r.PathValue("id"), addr, req.CardID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Transcript returns the archived record of a finished game. Transcripts
// are public so results can be shared.
// GET /api/games/{id}/transcript
func (h *GameHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	res, err := h.games.Transcript(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Watch upgrades to a WebSocket that streams every state change of a game.
// GET /api/games/{id}/ws
func (h *GameHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		writeError(w, http.StatusNotImplemented, "live updates are disabled")
		return
	}
	addr, ok := h.wallet(w, r)
	if !ok {
		return
	}
	view, err := h.games.Get(r.Context(), r.PathValue("id"), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	id := view.ID
	h.watcher.Serve(w, r, id, func(ctx context.Context) (domain.GameState, error) {
		v, err := h.games.Get(ctx, id, addr)
		return v.State, err
	})
}

// Cards lists the playable catalog.
// GET /api/cards
func (h *GameHandler) Cards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cards": h.catalog.Cards()})
}

// Tutorial returns the tutorial steps and, for signed-in wallets, whether
// they were already shown.
// GET /api/tutorial
func (h *GameHandler) Tutorial(w http.ResponseWriter, r *http.Request) {
	addr, _ := h.sessions.Address(r.Context(), middleware.SessionID(r.Context()))
	view, err := h.games.Tutorial(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// TutorialSeen records that the signed-in wallet finished the tutorial.
// POST /api/tutorial/seen
func (h *GameHandler) TutorialSeen(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.wallet(w, r)
	if !ok {
		return
	}
	if err := h.games.MarkTutorialSeen(r.Context(), addr); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard ranks wallets by wins.
// GET /api/leaderboard?limit=20
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.games.Leaderboard(r.Context(), parseLimit(r, 20, 100))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
