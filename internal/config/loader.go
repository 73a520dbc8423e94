package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WHALEBOUNTY_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults and
// environment are used. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WHALEBOUNTY_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Game ──
	setStr(&cfg.Game.CatalogPath, "WHALEBOUNTY_GAME_CATALOG_PATH")
	setDuration(&cfg.Game.PlayDelay, "WHALEBOUNTY_GAME_PLAY_DELAY")
	setDuration(&cfg.Game.OpponentDelay, "WHALEBOUNTY_GAME_OPPONENT_DELAY")
	setDuration(&cfg.Game.EventDelay, "WHALEBOUNTY_GAME_EVENT_DELAY")
	setStr(&cfg.Game.AppURL, "WHALEBOUNTY_GAME_APP_URL")
	setInt(&cfg.Game.MaxGames, "WHALEBOUNTY_GAME_MAX_GAMES")
	setDuration(&cfg.Game.GameTTL, "WHALEBOUNTY_GAME_TTL")

	// ── Auth ──
	setStr(&cfg.Auth.Domain, "WHALEBOUNTY_AUTH_DOMAIN")
	setStr(&cfg.Auth.URI, "WHALEBOUNTY_AUTH_URI")
	setStr(&cfg.Auth.Statement, "WHALEBOUNTY_AUTH_STATEMENT")
	setInt64(&cfg.Auth.ChainID, "WHALEBOUNTY_AUTH_CHAIN_ID")
	setStr(&cfg.Auth.SessionSecret, "WHALEBOUNTY_AUTH_SESSION_SECRET")
	setDuration(&cfg.Auth.SessionTTL, "WHALEBOUNTY_AUTH_SESSION_TTL")
	setDuration(&cfg.Auth.NonceTTL, "WHALEBOUNTY_AUTH_NONCE_TTL")
	setDuration(&cfg.Auth.ChallengeTTL, "WHALEBOUNTY_AUTH_CHALLENGE_TTL")
	setInt(&cfg.Auth.RateLimit, "WHALEBOUNTY_AUTH_RATE_LIMIT")
	setDuration(&cfg.Auth.RateWindow, "WHALEBOUNTY_AUTH_RATE_WINDOW")

	// ── Wallet ──
	setStr(&cfg.Wallet.RPCURL, "WHALEBOUNTY_WALLET_RPC_URL")
	setStr(&cfg.Wallet.ProviderURL, "WHALEBOUNTY_WALLET_PROVIDER_URL")
	setStr(&cfg.Wallet.PrivateKey, "WHALEBOUNTY_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WHALEBOUNTY_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WHALEBOUNTY_WALLET_KEY_PASSWORD")
	setBool(&cfg.Wallet.SupportsConnect, "WHALEBOUNTY_WALLET_SUPPORTS_CONNECT")

	// ── Manifest ──
	setStr(&cfg.Manifest.AccountAssociation.Header, "WHALEBOUNTY_MANIFEST_HEADER")
	setStr(&cfg.Manifest.AccountAssociation.Payload, "WHALEBOUNTY_MANIFEST_PAYLOAD")
	setStr(&cfg.Manifest.AccountAssociation.Signature, "WHALEBOUNTY_MANIFEST_SIGNATURE")
	setStr(&cfg.Manifest.MiniApp.HomeURL, "WHALEBOUNTY_MANIFEST_HOME_URL")
	setStr(&cfg.Manifest.MiniApp.WebhookURL, "WHALEBOUNTY_MANIFEST_WEBHOOK_URL")

	// ── Content ──
	setStr(&cfg.Content.BaseURL, "WHALEBOUNTY_CONTENT_BASE_URL")
	setStr(&cfg.Content.APIKey, "WHALEBOUNTY_CONTENT_API_KEY")
	setDuration(&cfg.Content.Timeout, "WHALEBOUNTY_CONTENT_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "WHALEBOUNTY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "WHALEBOUNTY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHALEBOUNTY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHALEBOUNTY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHALEBOUNTY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WHALEBOUNTY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WHALEBOUNTY_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "WHALEBOUNTY_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "WHALEBOUNTY_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "WHALEBOUNTY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHALEBOUNTY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHALEBOUNTY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHALEBOUNTY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHALEBOUNTY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHALEBOUNTY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHALEBOUNTY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHALEBOUNTY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHALEBOUNTY_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "WHALEBOUNTY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "WHALEBOUNTY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WHALEBOUNTY_S3_REGION")
	setStr(&cfg.S3.Bucket, "WHALEBOUNTY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WHALEBOUNTY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WHALEBOUNTY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WHALEBOUNTY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WHALEBOUNTY_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "WHALEBOUNTY_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "WHALEBOUNTY_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform-assigned port wins
	setStringSlice(&cfg.Server.CORSOrigins, "WHALEBOUNTY_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.SecureCookie, "WHALEBOUNTY_SERVER_SECURE_COOKIE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WHALEBOUNTY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WHALEBOUNTY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WHALEBOUNTY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WHALEBOUNTY_NOTIFY_EVENTS")

	// ── Simulate ──
	setInt(&cfg.Simulate.Games, "WHALEBOUNTY_SIMULATE_GAMES")
	setInt(&cfg.Simulate.Workers, "WHALEBOUNTY_SIMULATE_WORKERS")
	setUint64(&cfg.Simulate.Seed, "WHALEBOUNTY_SIMULATE_SEED")

	// ── Top-level ──
	setStr(&cfg.Mode, "WHALEBOUNTY_MODE")
	setStr(&cfg.LogLevel, "WHALEBOUNTY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
