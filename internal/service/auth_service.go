package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/whalebounty/whalebounty/internal/auth"
	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/notify"
)

// Challenge is handed to a browser wallet before it signs in.
type Challenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message,omitempty"`
}

// AuthService wraps the sign-in flow with session bookkeeping, the audit log
// and notifications.
type AuthService struct {
	flow     *auth.Flow
	sessions domain.SessionStore
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. notifier may be nil.
func NewAuthService(
	flow *auth.Flow,
	sessions domain.SessionStore,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		flow:     flow,
		sessions: sessions,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "auth_service")),
	}
}

// NewChallenge issues a fresh nonce to session. When address is given the
// message the wallet should sign is included as well.
func (s *AuthService) NewChallenge(ctx context.Context, session, address string) (Challenge, error) {
	nonce, err := s.flow.Issue(ctx, session)
	if err != nil {
		return Challenge{}, err
	}
	c := Challenge{Nonce: nonce}
	if address != "" {
		c.Message = s.flow.Message(address, nonce)
	}
	return c, nil
}

// SignIn runs the full wallet flow through the configured provider with a
// freshly generated nonce.
func (s *AuthService) SignIn(ctx context.Context, session string) (domain.AuthResult, error) {
	res, err := s.flow.SignIn(ctx, session, auth.GenerateNonce())
	if err != nil {
		return domain.AuthResult{}, err
	}
	return res, s.remember(ctx, session, res)
}

// Verify accepts a signature produced by a browser wallet for nonce.
func (s *AuthService) Verify(ctx context.Context, session, nonce, address, message, signature string) (domain.AuthResult, error) {
	res, err := s.flow.Accept(ctx, session, nonce, address, message, signature)
	if err != nil {
		if code := auth.CodeOf(err); code != "" {
			s.logAudit(ctx, "sign_in_failed", map[string]any{"address": address, "code": string(code)})
		}
		return domain.AuthResult{}, err
	}
	return res, s.remember(ctx, session, res)
}

// Address returns the verified wallet of session, or domain.ErrUnauthorized.
func (s *AuthService) Address(ctx context.Context, session string) (string, error) {
	addr, err := s.sessions.GetAddress(ctx, session)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("auth_service: get address: %w", err)
	}
	return addr, nil
}

// SignOut forgets the verified wallet of session. Consumed nonces stay
// consumed.
func (s *AuthService) SignOut(ctx context.Context, session string) error {
	if err := s.sessions.Clear(ctx, session); err != nil {
		return fmt.Errorf("auth_service: clear session: %w", err)
	}
	return nil
}

func (s *AuthService) remember(ctx context.Context, session string, res domain.AuthResult) error {
	if err := s.sessions.SetAddress(ctx, session, res.Address); err != nil {
		return fmt.Errorf("auth_service: set address: %w", err)
	}
	s.logAudit(ctx, "sign_in", map[string]any{"address": res.Address})

	if s.notifier.Enabled() {
		if err := s.notifier.Notify(ctx, notify.EventSignIn, "New trader", res.Address+" signed in"); err != nil {
			s.logger.WarnContext(ctx, "sign-in notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// logAudit records event; failures are logged and never block the caller.
func (s *AuthService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
