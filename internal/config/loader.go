package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDICTBOT_* environment variable overrides,
// and returns the final Config. The result has NOT been validated; the
// caller should invoke Config.Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present, silently skip if missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDICTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Polymarket.GammaHost, "PREDICTBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "PREDICTBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.WsHost, "PREDICTBOT_POLYMARKET_WS_HOST")

	setStr(&cfg.Clob.ApiKey, "PREDICTBOT_CLOB_API_KEY")
	setStr(&cfg.Clob.ApiSecret, "PREDICTBOT_CLOB_API_SECRET")
	setStr(&cfg.Clob.ApiPassphrase, "PREDICTBOT_CLOB_API_PASSPHRASE")
	setStr(&cfg.Clob.EncryptedPath, "PREDICTBOT_CLOB_ENCRYPTED_PATH")
	setStr(&cfg.Clob.Password, "PREDICTBOT_CLOB_PASSWORD")

	setStr(&cfg.Postgres.DSN, "PREDICTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTBOT_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "PREDICTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTBOT_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "PREDICTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDICTBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTBOT_S3_FORCE_PATH_STYLE")

	setDuration(&cfg.Sync.TTL, "PREDICTBOT_SYNC_TTL")
	setStr(&cfg.Sync.Staleness, "PREDICTBOT_SYNC_STALENESS")
	setInt(&cfg.Sync.MaxRetries, "PREDICTBOT_SYNC_MAX_RETRIES")
	setInt(&cfg.Sync.StoreFetchCap, "PREDICTBOT_SYNC_STORE_FETCH_CAP")
	setInt(&cfg.Sync.BatchSize, "PREDICTBOT_SYNC_BATCH_SIZE")
	setDuration(&cfg.Sync.BatchDelay, "PREDICTBOT_SYNC_BATCH_DELAY")

	setBool(&cfg.Deposits.Enabled, "PREDICTBOT_DEPOSITS_ENABLED")
	setStr(&cfg.Deposits.RPCURL, "PREDICTBOT_DEPOSITS_RPC_URL")
	setStr(&cfg.Deposits.Wallet, "PREDICTBOT_DEPOSITS_WALLET")
	setStr(&cfg.Deposits.USDCContract, "PREDICTBOT_DEPOSITS_USDC_CONTRACT")
	setDuration(&cfg.Deposits.PollInterval, "PREDICTBOT_DEPOSITS_POLL_INTERVAL")

	setBool(&cfg.Pipeline.Enabled, "PREDICTBOT_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.ScrapeInterval, "PREDICTBOT_PIPELINE_SCRAPE_INTERVAL")
	setInt(&cfg.Pipeline.ScrapeLimit, "PREDICTBOT_PIPELINE_SCRAPE_LIMIT")
	setBool(&cfg.Pipeline.ArchiveEnabled, "PREDICTBOT_PIPELINE_ARCHIVE_ENABLED")
	setDuration(&cfg.Pipeline.ArchiveInterval, "PREDICTBOT_PIPELINE_ARCHIVE_INTERVAL")

	setBool(&cfg.Server.Enabled, "PREDICTBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDICTBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PREDICTBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTBOT_SERVER_CORS_ORIGINS")

	setBool(&cfg.Bot.Enabled, "PREDICTBOT_BOT_ENABLED")
	setStr(&cfg.Bot.Token, "PREDICTBOT_BOT_TOKEN")

	setStr(&cfg.Notify.TelegramToken, "PREDICTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTBOT_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "PREDICTBOT_MODE")
	setStr(&cfg.LogLevel, "PREDICTBOT_LOG_LEVEL")
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
