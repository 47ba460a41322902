package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/yonghanchen/predictbot/internal/blob/s3"
	"github.com/yonghanchen/predictbot/internal/cache/redis"
	"github.com/yonghanchen/predictbot/internal/config"
	"github.com/yonghanchen/predictbot/internal/crypto"
	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/notify"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
	"github.com/yonghanchen/predictbot/internal/service"
	"github.com/yonghanchen/predictbot/internal/store/postgres"
)

// Dependencies bundles the concrete components the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	MarketStore  domain.MarketStore
	DepositStore domain.DepositStore

	MarketCache domain.MarketCache
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	RedisClient *redis.Client

	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient

	MarketService *service.MarketService
	Enhancer      *service.Enhancer

	DepositMonitor *service.DepositMonitor

	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs every dependency from the configuration and returns them
// with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.DepositStore = postgres.NewDepositStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RedisClient = redisClient
	deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Sync.TTL.Duration)
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Upstream clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)

	creds, err := crypto.LoadCredentials(
		cfg.Clob.ApiKey, cfg.Clob.ApiSecret, cfg.Clob.ApiPassphrase,
		cfg.Clob.EncryptedPath, cfg.Clob.Password,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: clob credentials: %w", err)
	}
	if creds.ApiKey != "" {
		deps.Clob.SetCredentials(creds.ApiKey, creds.ApiPassphrase)
	}

	// --- Core services ---
	deps.Enhancer = service.NewEnhancer(
		deps.Clob, deps.MarketStore,
		cfg.Sync.BatchSize, cfg.Sync.BatchDelay.Duration,
		logger,
	)
	deps.MarketService = service.NewMarketService(
		deps.MarketStore, deps.MarketCache, deps.Gamma, deps.Clob, deps.Enhancer,
		service.Policy{
			TTL:           cfg.Sync.TTL.Duration,
			Staleness:     service.Staleness(cfg.Sync.Staleness),
			MaxRetries:    cfg.Sync.MaxRetries,
			StoreFetchCap: cfg.Sync.StoreFetchCap,
		},
		logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Deposit monitor ---
	if cfg.Deposits.Enabled {
		eth, err := ethclient.DialContext(ctx, cfg.Deposits.RPCURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: eth rpc: %w", err)
		}
		closers = append(closers, eth.Close)

		deps.DepositMonitor = service.NewDepositMonitor(
			eth, deps.DepositStore, deps.Notifier,
			cfg.Deposits.Wallet, cfg.Deposits.USDCContract,
			cfg.Deposits.PollInterval.Duration,
			logger,
		)
	}

	// --- Snapshot archiver ---
	if cfg.Pipeline.ArchiveEnabled {
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.MarketStore)
	}

	return deps, cleanup, nil
}
