// Package server exposes the game over HTTP and WebSocket for the Telegram
// mini-app frontend.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/server/handler"
	"github.com/valuetycoon/tycoond/internal/server/middleware"
	"github.com/valuetycoon/tycoond/internal/server/ws"
)

// apiRateLimit bounds authenticated API calls per player.
const (
	apiRateLimit  = 120
	apiRateWindow = time.Minute
)

// Handlers aggregates every HTTP handler the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Market   *handler.MarketHandler
	Trade    *handler.TradeHandler
	Leverage *handler.LeverageHandler
	Property *handler.PropertyHandler
	Profile  *handler.ProfileHandler
	Admin    *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. The bot
// token drives Telegram init-data authentication; limiter may be nil to
// disable API rate limiting.
func NewServer(cfg config.ServerConfig, botToken string, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	auth := middleware.TelegramAuth(botToken)
	protect := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		if limiter != nil {
			next = middleware.RateLimit(limiter, apiRateLimit, apiRateWindow)(next)
		}
		return auth(next)
	}
	admin := middleware.AdminKey(cfg.AdminKey)

	// Health check, no auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market data.
	mux.Handle("GET /api/market/quotes", protect(handlers.Market.ListQuotes))
	mux.Handle("GET /api/market/history/{symbol}", protect(handlers.Market.History))

	// Auth and profile.
	mux.Handle("POST /api/auth/login", protect(handlers.Profile.Login))
	mux.Handle("GET /api/profile", protect(handlers.Profile.Me))
	mux.Handle("GET /api/profile/history", protect(handlers.Profile.History))
	mux.Handle("GET /api/profile/achievements", protect(handlers.Profile.Achievements))
	mux.Handle("GET /api/leaderboard", protect(handlers.Profile.Leaderboard))

	// Spot trading.
	mux.Handle("GET /api/trade/info/{symbol}", protect(handlers.Trade.Info))
	mux.Handle("POST /api/trade/buy", protect(handlers.Trade.Buy))
	mux.Handle("POST /api/trade/sell", protect(handlers.Trade.Sell))
	mux.Handle("GET /api/trade/positions", protect(handlers.Trade.Holdings))

	// Leveraged trading.
	mux.Handle("POST /api/leverage/open", protect(handlers.Leverage.Open))
	mux.Handle("POST /api/leverage/close", protect(handlers.Leverage.Close))
	mux.Handle("GET /api/leverage/positions", protect(handlers.Leverage.Positions))

	// Property market.
	mux.Handle("GET /api/property/catalog", protect(handlers.Property.Catalog))
	mux.Handle("GET /api/property/owned", protect(handlers.Property.Owned))
	mux.Handle("POST /api/property/buy", protect(handlers.Property.Buy))
	mux.Handle("DELETE /api/property/{id}", protect(handlers.Property.Sell))
	mux.Handle("POST /api/property/{id}/repair", protect(handlers.Property.Repair))

	// Operations.
	mux.Handle("GET /api/admin/scheduler", admin(http.HandlerFunc(handlers.Admin.SchedulerStatus)))
	mux.Handle("POST /api/admin/scheduler/trigger/{name}", admin(http.HandlerFunc(handlers.Admin.TriggerTask)))
	mux.Handle("GET /api/admin/archives", admin(http.HandlerFunc(handlers.Admin.ListArchives)))

	// Live updates.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start blocks serving HTTP until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
