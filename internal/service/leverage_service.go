package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/feed"
	"github.com/valuetycoon/tycoond/internal/leverage"
)

// LeverageService fronts the leverage engine with live pricing and the
// achievement hooks that belong above it.
type LeverageService struct {
	engine       *leverage.Engine
	market       *feed.Feed
	positions    domain.LeverageStore
	achievements *AchievementService
	logger       *slog.Logger
}

func NewLeverageService(
	engine *leverage.Engine,
	market *feed.Feed,
	positions domain.LeverageStore,
	achievements *AchievementService,
	logger *slog.Logger,
) *LeverageService {
	return &LeverageService{
		engine:       engine,
		market:       market,
		positions:    positions,
		achievements: achievements,
		logger:       logger.With(slog.String("component", "leverage_service")),
	}
}

// Open opens a leveraged position at the live price.
func (s *LeverageService) Open(ctx context.Context, userID int64, symbol string, margin float64, lev int) (domain.LeveragedPosition, error) {
	price, err := s.market.Price(ctx, symbol)
	if err != nil {
		return domain.LeveragedPosition{}, fmt.Errorf("leverage_service: price for %s: %w", symbol, err)
	}
	pos, err := s.engine.Open(ctx, userID, symbol, margin, lev, price)
	if err != nil {
		return domain.LeveragedPosition{}, err
	}

	if s.achievements != nil {
		if _, err := s.achievements.Award(ctx, userID, AchHighRoller); err != nil {
			s.logger.Warn("high roller award failed", slog.Any("error", err))
		}
	}
	return pos, nil
}

// Close closes the user's position in the given coin at the live price and
// returns the payout.
func (s *LeverageService) Close(ctx context.Context, userID int64, symbol string) (float64, error) {
	price, err := s.market.Price(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("leverage_service: price for %s: %w", symbol, err)
	}
	payout, err := s.engine.Close(ctx, userID, symbol, price)
	if err != nil {
		return 0, err
	}

	if s.achievements != nil {
		s.achievements.CheckWealth(ctx, userID)
	}
	return payout, nil
}

// Positions returns the user's open positions with their current risk
// snapshot attached.
func (s *LeverageService) Positions(ctx context.Context, userID int64) ([]domain.RiskEvent, error) {
	// Risk snapshots are priced off the store, not the read cache.
	quotes, err := s.market.Read(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("leverage_service: quotes: %w", err)
	}
	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("leverage_service: open positions: %w", err)
	}

	var events []domain.RiskEvent
	for _, pos := range open {
		if pos.UserID != userID {
			continue
		}
		quote, ok := quotes[pos.Symbol]
		if !ok {
			continue
		}
		events = append(events, s.engine.Evaluate(pos, quote.Price, quote.ObservedAt))
	}
	return events, nil
}
