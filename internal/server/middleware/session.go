package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionCookie carries the signed session token for browsers.
	SessionCookie = "wb_session"

	// SessionHeader returns a freshly issued token to clients that cannot
	// keep cookies (embedded mini-app frames); they send it back as a
	// Bearer token.
	SessionHeader = "X-Session-Token"
)

// Tokens signs and verifies session tokens.
type Tokens interface {
	Sign(id string) string
	Verify(token string) (string, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id placed on ctx by Session, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Session resolves the caller's session from a Bearer token or the session
// cookie. A missing or tampered token starts a new session. Every request
// past this middleware has a session id on its context.
func Session(tokens Tokens, ttl time.Duration, secure bool) func(http.Handler) http.Handler {
	sameSite := http.SameSiteLaxMode
	if secure {
		// Mini-apps run in a third-party frame.
		sameSite = http.SameSiteNoneMode
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if token := extractToken(r); token != "" {
				if got, err := tokens.Verify(token); err == nil {
					id = got
				}
			}

			if id == "" {
				id = uuid.NewString()
				token := tokens.Sign(id)
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    token,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: sameSite,
				})
				w.Header().Set(SessionHeader, token)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id)))
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or the session cookie. The token query parameter is read only on WebSocket
// handshakes, since browsers cannot set headers on those.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	if strings.HasSuffix(r.URL.Path, "/ws") {
		return r.URL.Query().Get("token")
	}
	return ""
}
