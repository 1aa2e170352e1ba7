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
// built-in defaults, applies TYCOON_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TYCOON_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "TYCOON_FEED_BASE_URL")
	setStr(&cfg.Feed.APIKey, "TYCOON_FEED_API_KEY")
	setStringSlice(&cfg.Feed.Symbols, "TYCOON_FEED_SYMBOLS")
	setStr(&cfg.Feed.Currency, "TYCOON_FEED_CURRENCY")
	setDuration(&cfg.Feed.FetchTimeout, "TYCOON_FEED_FETCH_TIMEOUT")
	setDuration(&cfg.Feed.ReadCacheTTL, "TYCOON_FEED_READ_CACHE_TTL")
	setDuration(&cfg.Feed.StalenessCeiling, "TYCOON_FEED_STALENESS_CEILING")
	setInt(&cfg.Feed.FallbackAfter, "TYCOON_FEED_FALLBACK_AFTER")
	setInt(&cfg.Feed.RateLimitPerMin, "TYCOON_FEED_RATE_LIMIT_PER_MIN")

	// ── Game ──
	setFloat64(&cfg.Game.InitialCash, "TYCOON_GAME_INITIAL_CASH")
	setFloat64(&cfg.Game.TradingFee, "TYCOON_GAME_TRADING_FEE")
	setFloat64(&cfg.Game.MinVolumeForProperty, "TYCOON_GAME_MIN_VOLUME_FOR_PROPERTY")
	setInt(&cfg.Game.RentCycleHours, "TYCOON_GAME_RENT_CYCLE_HOURS")
	setFloat64(&cfg.Game.MaintenanceChance, "TYCOON_GAME_MAINTENANCE_CHANCE")
	setInt(&cfg.Game.ConditionDecayRate, "TYCOON_GAME_CONDITION_DECAY_RATE")
	setDuration(&cfg.Game.VolumeHoldMinimum, "TYCOON_GAME_VOLUME_HOLD_MINIMUM")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.MarketRefreshInterval, "TYCOON_SCHEDULER_MARKET_REFRESH_INTERVAL")
	setDuration(&cfg.Scheduler.MarketRetryDelay, "TYCOON_SCHEDULER_MARKET_RETRY_DELAY")
	setDuration(&cfg.Scheduler.RiskScanInterval, "TYCOON_SCHEDULER_RISK_SCAN_INTERVAL")
	setDuration(&cfg.Scheduler.EconomyTickInterval, "TYCOON_SCHEDULER_ECONOMY_TICK_INTERVAL")
	setDuration(&cfg.Scheduler.WorldEventInterval, "TYCOON_SCHEDULER_WORLD_EVENT_INTERVAL")
	setFloat64(&cfg.Scheduler.WorldEventChance, "TYCOON_SCHEDULER_WORLD_EVENT_CHANCE")
	setDuration(&cfg.Scheduler.HealthProbeInterval, "TYCOON_SCHEDULER_HEALTH_PROBE_INTERVAL")
	setDuration(&cfg.Scheduler.StaleForceRefresh, "TYCOON_SCHEDULER_STALE_FORCE_REFRESH")
	setStr(&cfg.Scheduler.ArchiveCron, "TYCOON_SCHEDULER_ARCHIVE_CRON")
	setInt(&cfg.Scheduler.ArchiveRetentionDays, "TYCOON_SCHEDULER_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Scheduler.SeasonCron, "TYCOON_SCHEDULER_SEASON_CRON")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TYCOON_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TYCOON_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TYCOON_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TYCOON_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TYCOON_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TYCOON_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TYCOON_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TYCOON_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TYCOON_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TYCOON_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TYCOON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TYCOON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TYCOON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TYCOON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TYCOON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TYCOON_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TYCOON_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TYCOON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TYCOON_S3_REGION")
	setStr(&cfg.S3.Bucket, "TYCOON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TYCOON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TYCOON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TYCOON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TYCOON_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TYCOON_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TYCOON_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TYCOON_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminKey, "TYCOON_SERVER_ADMIN_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TYCOON_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.DiscordWebhookURL, "TYCOON_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TYCOON_NOTIFY_EVENTS")

	// ── Telegram ──
	setStr(&cfg.Telegram.BotToken, "TYCOON_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Telegram.BotToken, "BOT_TOKEN") // compatibility alias
	setStr(&cfg.Telegram.EncryptedTokenPath, "TYCOON_TELEGRAM_ENCRYPTED_TOKEN_PATH")
	setStr(&cfg.Telegram.TokenPassword, "TYCOON_TELEGRAM_TOKEN_PASSWORD")

	// ── Top-level ──
	setStr(&cfg.Mode, "TYCOON_MODE")
	setStr(&cfg.LogLevel, "TYCOON_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setDuration(dst *Duration, key string) {
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
