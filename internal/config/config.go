// Package config defines the top-level configuration for the economy engine
// and provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TYCOON_* environment variables.
type Config struct {
	Feed       FeedConfig       `toml:"feed"`
	Game       GameConfig       `toml:"game"`
	Leverage   LeverageConfig   `toml:"leverage"`
	Properties []PropertyConfig `toml:"properties"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// FeedConfig holds the external price source parameters.
type FeedConfig struct {
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	Symbols          []string `toml:"symbols"`  // coin ids, e.g. "bitcoin"
	Currency         string   `toml:"currency"` // quote currency, e.g. "EUR"
	FetchTimeout     Duration `toml:"fetch_timeout"`
	ReadCacheTTL     Duration `toml:"read_cache_ttl"`
	StalenessCeiling Duration `toml:"staleness_ceiling"`
	FallbackAfter    int      `toml:"fallback_after"` // consecutive failures before fallback
	RateLimitPerMin  int      `toml:"rate_limit_per_min"`
}

// GameConfig holds the economy balance constants.
type GameConfig struct {
	InitialCash          float64  `toml:"initial_cash"`
	TradingFee           float64  `toml:"trading_fee"`
	MinVolumeForProperty float64  `toml:"min_volume_for_property"`
	RentCycleHours       int      `toml:"rent_cycle_hours"`
	MaintenanceChance    float64  `toml:"maintenance_chance"`
	ConditionDecayRate   int      `toml:"condition_decay_rate"` // points per month
	VolumeHoldMinimum    Duration `toml:"volume_hold_minimum"`  // holding time before sells count as volume
	SeasonPrizeShare     float64  `toml:"season_prize_share"`   // share of the tax pool paid out
}

// LeverageConfig bounds leveraged trading.
type LeverageConfig struct {
	Min                  int     `toml:"min"`
	Max                  int     `toml:"max"`
	Available            []int   `toml:"available"`
	LiquidationThreshold float64 `toml:"liquidation_threshold"`
}

// PropertyConfig is one catalog entry of the property market.
type PropertyConfig struct {
	ID              string  `toml:"id"`
	Name            string  `toml:"name"`
	Price           float64 `toml:"price"`
	Rent            float64 `toml:"rent"`
	MaintenanceCost float64 `toml:"maintenance_cost"`
	Tier            int     `toml:"tier"`
}

// SchedulerConfig holds the cadences of the periodic tasks.
type SchedulerConfig struct {
	MarketRefreshInterval Duration `toml:"market_refresh_interval"`
	MarketRetryDelay      Duration `toml:"market_retry_delay"`
	RiskScanInterval      Duration `toml:"risk_scan_interval"`
	EconomyTickInterval   Duration `toml:"economy_tick_interval"`
	WorldEventInterval    Duration `toml:"world_event_interval"`
	WorldEventChance      float64  `toml:"world_event_chance"`
	HealthProbeInterval   Duration `toml:"health_probe_interval"`
	StaleForceRefresh     Duration `toml:"stale_force_refresh"` // feed age that triggers self-healing
	ArchiveCron           string   `toml:"archive_cron"`
	ArchiveRetentionDays  int      `toml:"archive_retention_days"`
	SeasonCron            string   `toml:"season_cron"`
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

// S3Config holds S3-compatible object storage parameters for ledger archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminKey    string   `toml:"admin_key"` // guards scheduler control endpoints
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// TelegramConfig holds the WebApp auth parameters. The bot token can live in
// an encrypted file instead of plain config.
type TelegramConfig struct {
	BotToken           string `toml:"bot_token"`
	EncryptedTokenPath string `toml:"encrypted_token_path"`
	TokenPassword      string `toml:"token_password"`
}

// Duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the stock game balance. A config
// file only needs to carry the settings it overrides.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			BaseURL:          "https://min-api.cryptocompare.com/data",
			Symbols:          []string{"bitcoin", "litecoin", "ethereum"},
			Currency:         "EUR",
			FetchTimeout:     Duration{15 * time.Second},
			ReadCacheTTL:     Duration{10 * time.Second},
			StalenessCeiling: Duration{3 * time.Minute},
			FallbackAfter:    3,
			RateLimitPerMin:  30,
		},
		Game: GameConfig{
			InitialCash:          10_000,
			TradingFee:           0.005,
			MinVolumeForProperty: 30_000,
			RentCycleHours:       24,
			MaintenanceChance:    0.08,
			ConditionDecayRate:   2,
			VolumeHoldMinimum:    Duration{time.Hour},
			SeasonPrizeShare:     0.3,
		},
		Leverage: LeverageConfig{
			Min:                  2,
			Max:                  50,
			Available:            []int{2, 5, 10, 20, 50},
			LiquidationThreshold: 0.9,
		},
		Properties: []PropertyConfig{
			{ID: "garage", Name: "Garage in Berlin", Price: 15_000, Rent: 110, MaintenanceCost: 50, Tier: 1},
			{ID: "apartment", Name: "1-Zimmer Wohnung", Price: 85_000, Rent: 450, MaintenanceCost: 120, Tier: 2},
			{ID: "house", Name: "Einfamilienhaus", Price: 350_000, Rent: 1_800, MaintenanceCost: 350, Tier: 3},
			{ID: "luxury_apartment", Name: "Luxus-Penthouse", Price: 1_200_000, Rent: 6_500, MaintenanceCost: 1_000, Tier: 4},
			{ID: "commercial", Name: "Gewerbeimmobilie", Price: 2_500_000, Rent: 15_000, MaintenanceCost: 2_500, Tier: 5},
			{ID: "skyscraper", Name: "Wolkenkratzer", Price: 10_000_000, Rent: 75_000, MaintenanceCost: 10_000, Tier: 6},
		},
		Scheduler: SchedulerConfig{
			MarketRefreshInterval: Duration{60 * time.Second},
			MarketRetryDelay:      Duration{10 * time.Second},
			RiskScanInterval:      Duration{5 * time.Minute},
			EconomyTickInterval:   Duration{60 * time.Minute},
			WorldEventInterval:    Duration{30 * time.Minute},
			WorldEventChance:      0.12,
			HealthProbeInterval:   Duration{3 * time.Minute},
			StaleForceRefresh:     Duration{5 * time.Minute},
			ArchiveCron:           "0 3 1 * *",
			ArchiveRetentionDays:  90,
			SeasonCron:            "0 0 1 * *",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tycoon",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tycoon-ledger",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        3001,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"liquidation", "liquidation_warning", "rent", "maintenance", "world_event", "season_reward", "achievement"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"engine": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. A non-nil result is fatal
// at startup: the process must not continue half-configured.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: engine, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if len(c.Feed.Symbols) == 0 {
		errs = append(errs, "feed: at least one symbol is required")
	}
	if c.Feed.Currency == "" {
		errs = append(errs, "feed: currency must not be empty")
	}
	if c.Feed.FetchTimeout.Duration <= 0 {
		errs = append(errs, "feed: fetch_timeout must be positive")
	}
	if c.Feed.FallbackAfter < 1 {
		errs = append(errs, "feed: fallback_after must be >= 1")
	}

	// Game balance
	if c.Game.InitialCash <= 0 {
		errs = append(errs, "game: initial_cash must be > 0")
	}
	if c.Game.TradingFee <= 0 || c.Game.TradingFee >= 1 {
		errs = append(errs, fmt.Sprintf("game: trading_fee must be in (0, 1), got %g", c.Game.TradingFee))
	}
	if c.Game.RentCycleHours < 1 {
		errs = append(errs, "game: rent_cycle_hours must be >= 1")
	}
	if c.Game.MaintenanceChance < 0 || c.Game.MaintenanceChance > 1 {
		errs = append(errs, "game: maintenance_chance must be within [0, 1]")
	}

	// Leverage
	if c.Leverage.Min < 2 {
		errs = append(errs, "leverage: min must be >= 2")
	}
	if c.Leverage.Max > 50 || c.Leverage.Max < c.Leverage.Min {
		errs = append(errs, "leverage: max must be within [min, 50]")
	}
	if c.Leverage.LiquidationThreshold <= 0 || c.Leverage.LiquidationThreshold >= 1 {
		errs = append(errs, "leverage: liquidation_threshold must be in (0, 1)")
	}
	for _, lv := range c.Leverage.Available {
		if lv < c.Leverage.Min || lv > c.Leverage.Max {
			errs = append(errs, fmt.Sprintf("leverage: available value %d outside [%d, %d]", lv, c.Leverage.Min, c.Leverage.Max))
		}
	}

	// Properties
	if len(c.Properties) == 0 {
		errs = append(errs, "properties: catalog must not be empty")
	}
	seen := make(map[string]bool, len(c.Properties))
	for _, p := range c.Properties {
		if p.ID == "" {
			errs = append(errs, "properties: entry with empty id")
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("properties: duplicate id %q", p.ID))
		}
		seen[p.ID] = true
		if p.Price <= 0 || math.IsNaN(p.Price) {
			errs = append(errs, fmt.Sprintf("properties: %s price must be > 0", p.ID))
		}
		if p.Rent < 0 || p.MaintenanceCost < 0 {
			errs = append(errs, fmt.Sprintf("properties: %s rent and maintenance_cost must be >= 0", p.ID))
		}
	}

	// Scheduler
	if c.Scheduler.MarketRefreshInterval.Duration <= 0 {
		errs = append(errs, "scheduler: market_refresh_interval must be positive")
	}
	if c.Scheduler.RiskScanInterval.Duration <= 0 {
		errs = append(errs, "scheduler: risk_scan_interval must be positive")
	}
	if c.Scheduler.EconomyTickInterval.Duration <= 0 {
		errs = append(errs, "scheduler: economy_tick_interval must be positive")
	}
	if c.Scheduler.WorldEventChance < 0 || c.Scheduler.WorldEventChance > 1 {
		errs = append(errs, "scheduler: world_event_chance must be within [0, 1]")
	}
	if c.Scheduler.ArchiveRetentionDays < 1 {
		errs = append(errs, "scheduler: archive_retention_days must be >= 1")
	}

	// Postgres
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
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be within [0, pool_max_conns]")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		// The auth middleware needs a bot token to validate WebApp logins.
		if c.Telegram.BotToken == "" && c.Telegram.EncryptedTokenPath == "" {
			errs = append(errs, "telegram: either bot_token or encrypted_token_path must be set when the server is enabled")
		}
		if c.Telegram.EncryptedTokenPath != "" && c.Telegram.TokenPassword == "" {
			errs = append(errs, "telegram: token_password is required when encrypted_token_path is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
