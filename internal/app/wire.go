package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/valuetycoon/tycoond/internal/blob/s3"
	"github.com/valuetycoon/tycoond/internal/cache/redis"
	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/crypto"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/notify"
	"github.com/valuetycoon/tycoond/internal/store/postgres"
)

// streamMaxLen caps the Redis streams behind the signal bus.
const streamMaxLen = 10_000

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Profiles     domain.ProfileStore
	Positions    domain.SpotPositionStore
	Leveraged    domain.LeverageStore
	Properties   domain.PropertyStore
	Quotes       domain.QuoteStore
	Ledger       domain.LedgerStore
	Economy      domain.EconomyStore
	Achievements domain.AchievementStore

	// Caches
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Cold storage; nil unless s3.enabled.
	BlobWriter domain.BlobWriter
	BlobReader *s3blob.Reader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// BotToken is the resolved Telegram bot token; empty when the HTTP
	// server is disabled.
	BotToken string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

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
	deps.Profiles = postgres.NewProfileStore(pool, cfg.Game.InitialCash)
	deps.Positions = postgres.NewSpotPositionStore(pool)
	deps.Leveraged = postgres.NewLeverageStore(pool)
	deps.Properties = postgres.NewPropertyStore(pool)
	deps.Quotes = postgres.NewQuoteStore(pool)
	deps.Ledger = postgres.NewLedgerStore(pool)
	deps.Economy = postgres.NewEconomyStore(pool)
	deps.Achievements = postgres.NewAchievementStore(pool)

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

	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, streamMaxLen)

	// --- S3 cold storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewLedgerArchiver(deps.BlobWriter, deps.Ledger, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, deps.Profiles, logger)

	// --- Telegram WebApp auth token ---
	if cfg.Server.Enabled {
		token, err := crypto.LoadToken(crypto.TokenConfig{
			RawToken:           cfg.Telegram.BotToken,
			EncryptedTokenPath: cfg.Telegram.EncryptedTokenPath,
			TokenPassword:      cfg.Telegram.TokenPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bot token: %w", err)
		}
		deps.BotToken = token
	}

	return deps, cleanup, nil
}
