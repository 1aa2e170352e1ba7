package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valuetycoon/tycoond/internal/economy"
	"github.com/valuetycoon/tycoond/internal/feed"
	"github.com/valuetycoon/tycoond/internal/leverage"
	"github.com/valuetycoon/tycoond/internal/platform/cryptocompare"
	"github.com/valuetycoon/tycoond/internal/scheduler"
	"github.com/valuetycoon/tycoond/internal/server"
	"github.com/valuetycoon/tycoond/internal/server/handler"
	"github.com/valuetycoon/tycoond/internal/server/ws"
	"github.com/valuetycoon/tycoond/internal/service"
)

const shutdownGrace = 5 * time.Second

// engines groups the long-running game machinery the scheduler drives. The
// HTTP layer reuses the same feed and leverage engine so both modes see one
// set of semantics.
type engines struct {
	feed     *feed.Feed
	leverage *leverage.Engine
	catalog  *economy.Catalog
	ticker   *economy.Ticker
	events   *economy.WorldEventEmitter
	season   *service.SeasonService
}

func (a *App) buildEngines(deps *Dependencies) *engines {
	source := cryptocompare.NewClient(
		a.cfg.Feed.BaseURL,
		a.cfg.Feed.APIKey,
		a.cfg.Feed.FetchTimeout.Duration,
	)
	catalog := economy.NewCatalog(a.cfg.Properties)

	return &engines{
		feed: feed.New(
			source, deps.Quotes, deps.QuoteCache, deps.RateLimiter,
			deps.SignalBus, a.cfg.Feed, a.logger,
		),
		leverage: leverage.NewEngine(
			a.cfg.Leverage, a.cfg.Game.TradingFee,
			deps.Leveraged, deps.Ledger, deps.Economy, deps.Notifier, a.logger,
		),
		catalog: catalog,
		ticker: economy.NewTicker(
			a.cfg.Game, catalog, deps.Properties, deps.Ledger, deps.Notifier, a.logger,
		),
		events: economy.NewWorldEventEmitter(
			a.cfg.Scheduler.WorldEventChance, deps.SignalBus, deps.Notifier, a.logger,
		),
		season: service.NewSeasonService(
			a.cfg.Game.SeasonPrizeShare,
			deps.Profiles, deps.Economy, deps.Ledger, deps.Notifier, a.logger,
		),
	}
}

// buildController registers the full periodic task set. The caller decides
// whether the controller actually starts; the server-only mode keeps it idle
// so the admin endpoints can still report task state.
func (a *App) buildController(deps *Dependencies, eng *engines) *scheduler.Controller {
	ctrl := scheduler.NewController(deps.LockManager, a.logger)
	scheduler.RegisterJobs(ctrl, scheduler.Jobs{
		Feed:     eng.feed,
		Leverage: eng.leverage,
		Economy:  eng.ticker,
		Events:   eng.events,
		Archiver: deps.Archiver,
		Season:   eng.season.Distribute,
	}, a.cfg.Scheduler, a.logger)
	return ctrl
}

// EngineMode runs the game machinery without the HTTP API: market refresh,
// risk scanning, the property economy, world events, and the cron jobs.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	eng := a.buildEngines(deps)
	ctrl := a.buildController(deps, eng)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runScheduler(ctx, ctrl)
	})
	return g.Wait()
}

// runScheduler starts the task loops and blocks until the context is
// cancelled, then drains them. Start itself returns right after spawning, so
// the caller's errgroup needs this wrapper to stay alive.
func (a *App) runScheduler(ctx context.Context, ctrl *scheduler.Controller) error {
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	ctrl.Stop()
	return ctx.Err()
}

// ServerMode runs only the HTTP and WebSocket API. A separate engine process
// is expected to keep quotes fresh and run the economy.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	eng := a.buildEngines(deps)
	ctrl := a.buildController(deps, eng)

	g, ctx := errgroup.WithContext(ctx)
	a.startAPI(ctx, g, deps, eng, ctrl)
	return g.Wait()
}

// FullMode runs the engine and the API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	eng := a.buildEngines(deps)
	ctrl := a.buildController(deps, eng)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runScheduler(ctx, ctrl)
	})
	a.startAPI(ctx, g, deps, eng, ctrl)
	return g.Wait()
}

// startAPI builds the service layer and adds the HTTP server and WebSocket
// hub goroutines to the group.
func (a *App) startAPI(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	eng *engines,
	ctrl *scheduler.Controller,
) {
	achievements := service.NewAchievementService(
		deps.Achievements, deps.Profiles, deps.Properties, deps.Ledger,
		deps.Notifier, a.logger,
	)
	trades := service.NewTradeService(
		a.cfg.Game, eng.feed, deps.Profiles, deps.Positions, deps.Ledger,
		deps.Economy, achievements, a.logger,
	)
	leveraged := service.NewLeverageService(
		eng.leverage, eng.feed, deps.Leveraged, achievements, a.logger,
	)
	properties := service.NewPropertyService(
		a.cfg.Game, eng.catalog, deps.Properties, deps.Profiles, deps.Ledger,
		achievements, a.logger,
	)
	profiles := service.NewProfileService(deps.Profiles, deps.Ledger, a.logger)

	var archives handler.ArchiveBrowser
	if deps.BlobReader != nil {
		archives = deps.BlobReader
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(eng.feed, a.logger),
		Market:   handler.NewMarketHandler(eng.feed, deps.Quotes, a.logger),
		Trade:    handler.NewTradeHandler(trades, a.logger),
		Leverage: handler.NewLeverageHandler(leveraged, a.logger),
		Property: handler.NewPropertyHandler(properties, a.logger),
		Profile:  handler.NewProfileHandler(profiles, achievements, a.logger),
		Admin:    handler.NewAdminHandler(ctrl, archives, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(a.cfg.Server, deps.BotToken, handlers, hub, deps.RateLimiter, a.logger)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
