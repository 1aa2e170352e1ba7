package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/economy"
	"github.com/valuetycoon/tycoond/internal/feed"
	"github.com/valuetycoon/tycoond/internal/leverage"
)

// Task names, used for Trigger and in status output.
const (
	TaskMarketRefresh = "market_refresh"
	TaskRiskScan      = "risk_scan"
	TaskEconomyTick   = "economy_tick"
	TaskWorldEvent    = "world_event"
	TaskHealthProbe   = "health_probe"
	TaskArchive       = "ledger_archive"
	TaskSeason        = "season_rewards"
)

// Jobs bundles the engines the periodic tasks drive. Archiver and Season are
// optional.
type Jobs struct {
	Feed     *feed.Feed
	Leverage *leverage.Engine
	Economy  *economy.Ticker
	Events   *economy.WorldEventEmitter
	Archiver domain.Archiver
	Season   func(ctx context.Context) error
}

// RegisterJobs wires the standard task set into the controller.
func RegisterJobs(c *Controller, jobs Jobs, cfg config.SchedulerConfig, logger *slog.Logger) {
	log := logger.With(slog.String("component", "scheduler"))

	c.Register(Task{
		Name:       TaskMarketRefresh,
		Interval:   cfg.MarketRefreshInterval.Duration,
		RetryDelay: cfg.MarketRetryDelay.Duration,
		Immediate:  true,
		Run:        jobs.Feed.Refresh,
	})

	c.Register(Task{
		Name:     TaskRiskScan,
		Interval: cfg.RiskScanInterval.Duration,
		Run: func(ctx context.Context) error {
			return runRiskScan(ctx, jobs.Feed, jobs.Leverage)
		},
	})

	c.Register(Task{
		Name:     TaskEconomyTick,
		Interval: cfg.EconomyTickInterval.Duration,
		Run: func(ctx context.Context) error {
			_, err := jobs.Economy.Run(ctx)
			return err
		},
	})

	c.Register(Task{
		Name:     TaskWorldEvent,
		Interval: cfg.WorldEventInterval.Duration,
		Run: func(ctx context.Context) error {
			_, err := jobs.Events.MaybeEmit(ctx)
			return err
		},
	})

	c.Register(Task{
		Name:     TaskHealthProbe,
		Interval: cfg.HealthProbeInterval.Duration,
		Run: func(ctx context.Context) error {
			return runHealthProbe(ctx, c, jobs.Feed, cfg.StaleForceRefresh.Duration, log)
		},
	})

	if jobs.Archiver != nil && cfg.ArchiveCron != "" {
		retention := time.Duration(cfg.ArchiveRetentionDays) * 24 * time.Hour
		c.RegisterCron(CronTask{
			Name: TaskArchive,
			Expr: cfg.ArchiveCron,
			Run: func(ctx context.Context) error {
				cutoff := time.Now().UTC().Add(-retention)
				n, err := jobs.Archiver.ArchiveLedger(ctx, cutoff)
				if err != nil {
					return fmt.Errorf("scheduler: archive ledger: %w", err)
				}
				log.Info("ledger archived", slog.Int64("entries", n), slog.Time("cutoff", cutoff))
				return nil
			},
		})
	}

	if jobs.Season != nil && cfg.SeasonCron != "" {
		c.RegisterCron(CronTask{
			Name: TaskSeason,
			Expr: cfg.SeasonCron,
			Run:  jobs.Season,
		})
	}
}

// runRiskScan evaluates all open positions against fresh quotes and
// liquidates the ones at or past their trigger. The scan reads through the
// cache bypass so a liquidation never fires on stale prices.
func runRiskScan(ctx context.Context, f *feed.Feed, eng *leverage.Engine) error {
	quotes, err := f.Read(ctx, true)
	if err != nil {
		return fmt.Errorf("scheduler: risk scan quotes: %w", err)
	}

	events, err := eng.RiskScan(ctx, quotes)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Level != domain.RiskLiquidated {
			continue
		}
		if err := eng.Liquidate(ctx, ev.Position, ev.CurrentPrice); err != nil {
			return err
		}
	}
	return nil
}

// runHealthProbe force-refreshes the market feed when the last success is
// older than the staleness threshold. The regular refresh task normally keeps
// the feed fresh; this is the self-healing backstop.
func runHealthProbe(ctx context.Context, c *Controller, f *feed.Feed, staleAfter time.Duration, log *slog.Logger) error {
	status := f.Status()
	if status.LastSuccess.IsZero() || time.Since(status.LastSuccess) < staleAfter {
		return nil
	}

	log.Warn("feed stale, forcing refresh",
		slog.Time("last_success", status.LastSuccess),
		slog.Bool("fallback", status.Fallback))
	if err := f.Invalidate(ctx); err != nil {
		log.Warn("cache invalidate failed", slog.Any("error", err))
	}
	return c.Trigger(TaskMarketRefresh)
}
