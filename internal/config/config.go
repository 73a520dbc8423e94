// Package config defines the top-level configuration for the Whale Bounty host
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WHALEBOUNTY_* environment variables.
type Config struct {
	Game     GameConfig     `toml:"game"`
	Auth     AuthConfig     `toml:"auth"`
	Wallet   WalletConfig   `toml:"wallet"`
	Manifest ManifestConfig `toml:"manifest"`
	Content  ContentConfig  `toml:"content"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Simulate SimulateConfig `toml:"simulate"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// GameConfig holds engine pacing and catalog settings.
type GameConfig struct {
	// CatalogPath points at a cards YAML file; empty uses the built-in deck.
	CatalogPath   string   `toml:"catalog_path"`
	PlayDelay     duration `toml:"play_delay"`
	OpponentDelay duration `toml:"opponent_delay"`
	EventDelay    duration `toml:"event_delay"`
	// AppURL is linked from share posts.
	AppURL   string   `toml:"app_url"`
	MaxGames int      `toml:"max_games"`
	GameTTL  duration `toml:"game_ttl"`
}

// AuthConfig holds the sign-in message parameters and session settings.
type AuthConfig struct {
	Domain        string   `toml:"domain"`
	URI           string   `toml:"uri"`
	Statement     string   `toml:"statement"`
	ChainID       int64    `toml:"chain_id"`
	SessionSecret string   `toml:"session_secret"`
	SessionTTL    duration `toml:"session_ttl"`
	NonceTTL      duration `toml:"nonce_ttl"`
	ChallengeTTL  duration `toml:"challenge_ttl"`
	RateLimit     int      `toml:"rate_limit"`
	RateWindow    duration `toml:"rate_window"`
}

// WalletConfig holds the chain RPC endpoint used for signature verification
// and the optional server-side wallet used by simulate mode and tests.
type WalletConfig struct {
	RPCURL           string `toml:"rpc_url"`
	ProviderURL      string `toml:"provider_url"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	SupportsConnect  bool   `toml:"supports_connect"`
}

// ManifestConfig is served verbatim (minus empty values) at
// /.well-known/farcaster.json.
type ManifestConfig struct {
	AccountAssociation AccountAssociationConfig `toml:"account_association"`
	MiniApp            MiniAppConfig            `toml:"miniapp"`
}

// AccountAssociationConfig is the signed domain ownership proof.
type AccountAssociationConfig struct {
	Header    string `toml:"header"`
	Payload   string `toml:"payload"`
	Signature string `toml:"signature"`
}

// MiniAppConfig describes the app to the host client.
type MiniAppConfig struct {
	Version               string   `toml:"version"`
	Name                  string   `toml:"name"`
	HomeURL               string   `toml:"home_url"`
	IconURL               string   `toml:"icon_url"`
	SplashImageURL        string   `toml:"splash_image_url"`
	SplashBackgroundColor string   `toml:"splash_background_color"`
	WebhookURL            string   `toml:"webhook_url"`
	Subtitle              string   `toml:"subtitle"`
	Description           string   `toml:"description"`
	ScreenshotURLs        []string `toml:"screenshot_urls"`
	PrimaryCategory       string   `toml:"primary_category"`
	Tags                  []string `toml:"tags"`
	HeroImageURL          string   `toml:"hero_image_url"`
	Tagline               string   `toml:"tagline"`
	OGTitle               string   `toml:"og_title"`
	OGDescription         string   `toml:"og_description"`
	OGImageURL            string   `toml:"og_image_url"`
	NoIndex               bool     `toml:"noindex"`
}

// ContentConfig points at the optional remote market-event generator.
type ContentConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	SecureCookie bool     `toml:"secure_cookie"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// SimulateConfig controls the offline balance simulation.
type SimulateConfig struct {
	Games   int    `toml:"games"`
	Workers int    `toml:"workers"`
	Seed    uint64 `toml:"seed"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Game: GameConfig{
			PlayDelay:     duration{600 * time.Millisecond},
			OpponentDelay: duration{1500 * time.Millisecond},
			EventDelay:    duration{0},
			AppURL:        "https://whale-bounty.vercel.app",
			MaxGames:      10_000,
			GameTTL:       duration{time.Hour},
		},
		Auth: AuthConfig{
			Domain:       "whale-bounty.vercel.app",
			URI:          "https://whale-bounty.vercel.app",
			Statement:    "Sign in to Whale Bounty on Base.",
			ChainID:      8453,
			SessionTTL:   duration{24 * time.Hour},
			NonceTTL:     duration{24 * time.Hour},
			ChallengeTTL: duration{10 * time.Minute},
			RateLimit:    30,
			RateWindow:   duration{time.Minute},
		},
		Wallet: WalletConfig{
			RPCURL: "https://mainnet.base.org",
		},
		Manifest: ManifestConfig{
			MiniApp: MiniAppConfig{
				Version:               "1",
				Name:                  "Whale Bounty",
				HomeURL:               "https://whale-bounty.vercel.app/",
				SplashBackgroundColor: "#000000",
				PrimaryCategory:       "games",
				Tags:                  []string{"cards", "miniapp", "baseapp"},
			},
		},
		Content: ContentConfig{
			Timeout: duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "whalebounty",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "whalebounty",
			ForcePathStyle: true,
			Prefix:         "transcripts/",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"game_over"},
		},
		Simulate: SimulateConfig{
			Games:   1000,
			Workers: 4,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":   true,
	"simulate": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, simulate)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Game
	if c.Game.PlayDelay.Duration < 0 || c.Game.OpponentDelay.Duration < 0 || c.Game.EventDelay.Duration < 0 {
		errs = append(errs, "game: delays must not be negative")
	}
	if c.Game.MaxGames < 1 {
		errs = append(errs, "game: max_games must be >= 1")
	}

	// Auth
	if c.Auth.Domain == "" {
		errs = append(errs, "auth: domain must not be empty")
	}
	if _, err := url.ParseRequestURI(c.Auth.URI); err != nil {
		errs = append(errs, fmt.Sprintf("auth: uri %q is not a valid URI", c.Auth.URI))
	}
	if c.Auth.ChainID <= 0 {
		errs = append(errs, "auth: chain_id must be positive")
	}
	if c.Mode == "server" && len(c.Auth.SessionSecret) < 16 {
		errs = append(errs, "auth: session_secret must be at least 16 bytes in server mode")
	}
	if c.Auth.SessionTTL.Duration <= 0 || c.Auth.NonceTTL.Duration <= 0 || c.Auth.ChallengeTTL.Duration <= 0 {
		errs = append(errs, "auth: session_ttl, nonce_ttl and challenge_ttl must be > 0")
	}
	if c.Auth.RateLimit < 0 {
		errs = append(errs, "auth: rate_limit must be >= 0")
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.PrivateKey != "" && c.Wallet.EncryptedKeyPath != "" {
		errs = append(errs, "wallet: set either private_key or encrypted_key_path, not both")
	}

	// Content
	if c.Content.BaseURL != "" && c.Content.Timeout.Duration <= 0 {
		errs = append(errs, "content: timeout must be > 0 when base_url is set")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Server
	if c.Mode == "server" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Simulate
	if c.Mode == "simulate" {
		if c.Simulate.Games < 1 {
			errs = append(errs, "simulate: games must be >= 1")
		}
		if c.Simulate.Workers < 1 {
			errs = append(errs, "simulate: workers must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
