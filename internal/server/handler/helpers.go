package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/whalebounty/whalebounty/internal/auth"
	s3blob "github.com/whalebounty/whalebounty/internal/blob/s3"
	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/service"
)

// maxBodyBytes caps request bodies; the largest legitimate one is a signed
// sign-in message.
const maxBodyBytes = 16 << 10

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps err onto a status and stable error code. Unknown
// errors are logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func classify(err error) (int, string, string) {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return authStatus(ae.Code), string(ae.Code), ae.Message
	}

	switch {
	case errors.Is(err, game.ErrPlayInFlight):
		return http.StatusConflict, "PLAY_IN_FLIGHT", "a play is already being resolved"
	case errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict, "NOT_YOUR_TURN", "it is not your turn"
	case errors.Is(err, game.ErrGameOver):
		return http.StatusConflict, "GAME_OVER", "the game is over"
	case errors.Is(err, game.ErrNotStarted):
		return http.StatusConflict, "NOT_STARTED", "the game has not started"
	case errors.Is(err, game.ErrCardNotInHand):
		return http.StatusBadRequest, "CARD_NOT_IN_HAND", "that card is not in your hand"
	case errors.Is(err, s3blob.ErrInvalidGameID):
		return http.StatusBadRequest, "INVALID_GAME_ID", "invalid game id"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "sign in first"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "that game belongs to another wallet"
	case errors.Is(err, service.ErrTooManyGames):
		return http.StatusServiceUnavailable, "TOO_MANY_GAMES", "too many active games, try again soon"
	}
	return http.StatusInternalServerError, "", "internal server error"
}

func authStatus(code auth.Code) int {
	switch code {
	case auth.CodeNonceReused:
		return http.StatusConflict
	case auth.CodeInvalidSignature:
		return http.StatusUnauthorized
	case auth.CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseLimit reads the limit query parameter. Defaults to def, capped at ceiling.
func parseLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}
