package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/whalebounty/whalebounty/internal/auth"
	s3blob "github.com/whalebounty/whalebounty/internal/blob/s3"
	"github.com/whalebounty/whalebounty/internal/cache/redis"
	"github.com/whalebounty/whalebounty/internal/config"
	"github.com/whalebounty/whalebounty/internal/content"
	"github.com/whalebounty/whalebounty/internal/crypto"
	"github.com/whalebounty/whalebounty/internal/domain"
	"github.com/whalebounty/whalebounty/internal/game"
	"github.com/whalebounty/whalebounty/internal/notify"
	"github.com/whalebounty/whalebounty/internal/random"
	"github.com/whalebounty/whalebounty/internal/server/handler"
	"github.com/whalebounty/whalebounty/internal/service"
	"github.com/whalebounty/whalebounty/internal/store/memory"
	"github.com/whalebounty/whalebounty/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Catalog *game.Catalog
	Events  service.EventsFactory

	// Stores
	NonceStore   domain.NonceStore
	SessionStore domain.SessionStore
	PrefStore    domain.PreferenceStore
	AuditStore   domain.AuditStore
	ResultStore  domain.ResultStore

	// Caches; LockManager and SignalBus are nil without Redis.
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   *s3blob.TranscriptArchiver

	// Wallet
	Verifier auth.Verifier
	Provider auth.Provider

	// Notifications
	Notifier *notify.Notifier

	// Checks probe the external backends for the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. Backends that are not enabled
// fall back to in-process stores.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{
		NonceStore:   memory.NewNonceStoreTTL(cfg.Auth.ChallengeTTL.Duration),
		SessionStore: memory.NewSessionStore(),
		PrefStore:    memory.NewPreferenceStore(),
		AuditStore:   memory.NewAuditStore(),
		ResultStore:  memory.NewResultStore(),
		RateLimiter:  memory.NewRateLimiter(),
		Checks:       make(map[string]handler.Check),
	}

	// --- Card catalog ---
	catalog := game.DefaultCatalog()
	if cfg.Game.CatalogPath != "" {
		var err error
		if catalog, err = game.LoadCatalog(cfg.Game.CatalogPath); err != nil {
			return fail("catalog", err)
		}
	}
	deps.Catalog = catalog
	deps.Events = eventsFactory(cfg, logger)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.PrefStore = postgres.NewPreferenceStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.ResultStore = postgres.NewResultStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.NonceStore = redis.NewNonceStore(redisClient, cfg.Auth.NonceTTL.Duration, cfg.Auth.ChallengeTTL.Duration)
		deps.SessionStore = redis.NewSessionStore(redisClient, cfg.Auth.SessionTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Checks["s3"] = s3Client.Health
	} else {
		blobs := memory.NewBlobStore()
		deps.BlobWriter = blobs
		deps.BlobReader = blobs
	}
	deps.Archiver = s3blob.NewTranscriptArchiver(deps.BlobWriter, deps.BlobReader, cfg.S3.Prefix, logger)

	// --- Chain access for signature verification ---
	if cfg.Wallet.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Wallet.RPCURL)
		if err != nil {
			return fail("eth rpc", err)
		}
		closers = append(closers, eth.Close)
		deps.Verifier = auth.NewChainVerifier(eth, logger)
	} else {
		// EOA signatures only.
		deps.Verifier = auth.NewChainVerifier(nil, logger)
	}

	// --- Server-side wallet (optional) ---
	switch {
	case cfg.Wallet.ProviderURL != "":
		p, err := auth.DialRPCProvider(ctx, cfg.Wallet.ProviderURL)
		if err != nil {
			return fail("wallet provider", err)
		}
		closers = append(closers, p.Close)
		deps.Provider = p
	default:
		src := crypto.KeySource{
			Hex:      cfg.Wallet.PrivateKey,
			File:     cfg.Wallet.EncryptedKeyPath,
			Password: cfg.Wallet.KeyPassword,
		}
		if src.Configured() {
			w, err := auth.LoadLocalWallet(src, authConfig(cfg.Auth), cfg.Wallet.SupportsConnect)
			if err != nil {
				return fail("local wallet", err)
			}
			deps.Provider = w
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// eventsFactory builds the per-game market event source: the remote content
// service backed by the local generator when configured, otherwise the local
// generator alone, with optional cosmetic latency.
func eventsFactory(cfg *config.Config, logger *slog.Logger) service.EventsFactory {
	var remote *content.Client
	if cfg.Content.BaseURL != "" {
		remote = content.NewClient(cfg.Content.BaseURL, cfg.Content.APIKey, cfg.Content.Timeout.Duration)
	}
	delay := cfg.Game.EventDelay.Duration

	return func(src random.Source) game.EventSource {
		var events game.EventSource = game.NewGenerator(src)
		if remote != nil {
			events = content.Fallback{Primary: remote, Local: events, Logger: logger}
		}
		if delay > 0 {
			events = game.DelayedSource{Source: events, Delay: delay}
		}
		return events
	}
}

func authConfig(c config.AuthConfig) auth.Config {
	return auth.Config{
		Domain:    c.Domain,
		URI:       c.URI,
		Statement: c.Statement,
		ChainID:   c.ChainID,
	}
}

// originChecker admits WebSocket handshakes from the configured CORS origins.
// No origins means any.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
