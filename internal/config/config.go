// Package config defines the top-level configuration for predictbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PREDICTBOT_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Clob       ClobConfig       `toml:"clob"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Sync       SyncConfig       `toml:"sync"`
	Deposits   DepositsConfig   `toml:"deposits"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Bot        BotConfig        `toml:"bot"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds upstream API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	WsHost    string `toml:"ws_host"`
}

// ClobConfig holds CLOB API credentials. When EncryptedPath is set the
// credentials are read from an encrypted file at startup instead of the
// plain fields.
type ClobConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
	EncryptedPath string `toml:"encrypted_path"`
	Password      string `toml:"password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig tunes the market refresh cycle.
type SyncConfig struct {
	// TTL is the store freshness window.
	TTL duration `toml:"ttl"`
	// Staleness is "batch" or "record".
	Staleness string `toml:"staleness"`
	// MaxRetries is the number of extra live-fetch attempts.
	MaxRetries int `toml:"max_retries"`
	// StoreFetchCap bounds the store over-fetch.
	StoreFetchCap int `toml:"store_fetch_cap"`
	// BatchSize is the concurrent venue-lookup sub-batch size.
	BatchSize int `toml:"batch_size"`
	// BatchDelay is the pause between sub-batches.
	BatchDelay duration `toml:"batch_delay"`
}

// DepositsConfig holds the on-chain deposit monitor parameters.
type DepositsConfig struct {
	Enabled      bool     `toml:"enabled"`
	RPCURL       string   `toml:"rpc_url"`
	Wallet       string   `toml:"wallet"`
	USDCContract string   `toml:"usdc_contract"`
	PollInterval duration `toml:"poll_interval"`
}

// PipelineConfig holds data-pipeline parameters.
type PipelineConfig struct {
	Enabled         bool     `toml:"enabled"`
	ScrapeInterval  duration `toml:"scrape_interval"`
	ScrapeLimit     int      `toml:"scrape_limit"`
	ArchiveEnabled  bool     `toml:"archive_enabled"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// BotConfig holds the Telegram command bot parameters.
type BotConfig struct {
	Enabled        bool    `toml:"enabled"`
	Token          string  `toml:"token"`
	AllowedChatIDs []int64 `toml:"allowed_chat_ids"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML strings like "5m" decode cleanly.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "predictbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "predictbot-data",
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			TTL:           duration{5 * time.Minute},
			Staleness:     "batch",
			MaxRetries:    2,
			StoreFetchCap: 100,
			BatchSize:     5,
			BatchDelay:    duration{250 * time.Millisecond},
		},
		Deposits: DepositsConfig{
			Enabled: false,
			// USDC on Polygon.
			USDCContract: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			PollInterval: duration{time.Minute},
		},
		Pipeline: PipelineConfig{
			Enabled:         false,
			ScrapeInterval:  duration{5 * time.Minute},
			ScrapeLimit:     20,
			ArchiveEnabled:  false,
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"refresh_fallback", "deposit", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"scrape":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, scrape, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}

	if c.Clob.EncryptedPath != "" && c.Clob.Password == "" {
		errs = append(errs, "clob: password is required when encrypted_path is set")
	}

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
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
	}

	if c.Sync.TTL.Duration <= 0 {
		errs = append(errs, "sync: ttl must be positive")
	}
	if s := strings.ToLower(c.Sync.Staleness); s != "batch" && s != "record" {
		errs = append(errs, fmt.Sprintf("sync: staleness must be \"batch\" or \"record\", got %q", c.Sync.Staleness))
	}
	if c.Sync.MaxRetries < 0 {
		errs = append(errs, "sync: max_retries must be >= 0")
	}
	if c.Sync.BatchSize < 1 {
		errs = append(errs, "sync: batch_size must be >= 1")
	}

	if c.Deposits.Enabled {
		if c.Deposits.RPCURL == "" {
			errs = append(errs, "deposits: rpc_url must not be empty when enabled")
		}
		if !common.IsHexAddress(c.Deposits.Wallet) {
			errs = append(errs, fmt.Sprintf("deposits: wallet %q is not a valid hex address", c.Deposits.Wallet))
		}
		if !common.IsHexAddress(c.Deposits.USDCContract) {
			errs = append(errs, fmt.Sprintf("deposits: usdc_contract %q is not a valid hex address", c.Deposits.USDCContract))
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if c.Bot.Enabled && c.Bot.Token == "" {
		errs = append(errs, "bot: token must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
