package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/server/handler"
	"github.com/whalebounty/whalebounty/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	SecureCookie bool
	SessionTTL   time.Duration

	// AuthRateLimit caps sign-in calls per client IP per AuthRateWindow.
	// Zero disables it.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Manifest *handler.ManifestHandler
	Auth     *handler.AuthHandler
	Games    *handler.GameHandler
}

// Server is the HTTP + WebSocket host of Whale Bounty.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, tokens middleware.Tokens, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewHandler(cfg, handlers, tokens, limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A play waits out the round's pacing delays before answering.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed and wrapped http.Handler. Exposed for tests.
func NewHandler(cfg Config, handlers Handlers, tokens middleware.Tokens, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Public, session-free routes.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /.well-known/farcaster.json", handlers.Manifest.Manifest)

	api := http.NewServeMux()

	authLimit := middleware.RateLimit(limiter, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow, logger)
	api.Handle("POST /api/auth/nonce", authLimit(http.HandlerFunc(handlers.Auth.Nonce)))
	api.Handle("POST /api/auth/verify", authLimit(http.HandlerFunc(handlers.Auth.Verify)))
	api.HandleFunc("GET /api/auth/session", handlers.Auth.Session)
	api.HandleFunc("POST /api/auth/logout", handlers.Auth.Logout)

	api.HandleFunc("POST /api/games", handlers.Games.Create)
	api.HandleFunc("GET /api/games/{id}", handlers.Games.Get)
	api.HandleFunc("POST /api/games/{id}/play", handlers.Games.Play)
	api.HandleFunc("GET /api/games/{id}/transcript", handlers.Games.Transcript)
	api.HandleFunc("GET /api/games/{id}/ws", handlers.Games.Watch)

	api.HandleFunc("GET /api/cards", handlers.Games.Cards)
	api.HandleFunc("GET /api/tutorial", handlers.Games.Tutorial)
	api.HandleFunc("POST /api/tutorial/seen", handlers.Games.TutorialSeen)
	api.HandleFunc("GET /api/leaderboard", handlers.Games.Leaderboard)

	mux.Handle("/api/", middleware.Session(tokens, cfg.SessionTTL, cfg.SecureCookie)(api))

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
