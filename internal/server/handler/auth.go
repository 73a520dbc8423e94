package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/server/middleware"
	"github.com/whalebounty/whalebounty/internal/service"
)

// AuthService defines the methods that the auth handler requires from the
// service layer.
type AuthService interface {
	NewChallenge(ctx context.Context, session, address string) (service.Challenge, error)
	Verify(ctx context.Context, session, nonce, address, message, signature string) (domain.AuthResult, error)
	Address(ctx context.Context, session string) (string, error)
	SignOut(ctx context.Context, session string) error
}

// AuthHandler serves the Sign-In with Ethereum endpoints.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type nonceRequest struct {
	Address string `json:"address"`
}

// Nonce issues a fresh nonce to the caller's session, plus the message to sign
// when the wallet address is already known.
// POST /api/auth/nonce
func (h *AuthHandler) Nonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Address != "" && !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "address is not a valid wallet address")
		return
	}
	ch, err := h.auth.NewChallenge(r.Context(), middleware.SessionID(r.Context()), req.Address)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

type verifyRequest struct {
	Nonce     string `json:"nonce"`
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Verify checks a signed sign-in message and binds the wallet to the session.
// POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Nonce == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "nonce and address are required")
		return
	}

	res, err := h.auth.Verify(r.Context(), middleware.SessionID(r.Context()),
		req.Nonce, req.Address, req.Message, req.Signature)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Session reports the wallet bound to the caller's session.
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	addr, err := h.auth.Address(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

// Logout forgets the wallet bound to the caller's session.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.SessionID(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
