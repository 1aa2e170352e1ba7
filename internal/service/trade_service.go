package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/feed"
	"github.com/valuetycoon/tycoond/internal/trade"
)

// TradeService executes spot buys and sells at live market prices.
type TradeService struct {
	settlement   trade.Settlement
	market       *feed.Feed
	profiles     domain.ProfileStore
	positions    domain.SpotPositionStore
	ledger       domain.LedgerStore
	economy      domain.EconomyStore
	achievements *AchievementService
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// NewTradeService creates a TradeService. The achievement service may be nil.
func NewTradeService(
	cfg config.GameConfig,
	market *feed.Feed,
	profiles domain.ProfileStore,
	positions domain.SpotPositionStore,
	ledger domain.LedgerStore,
	economy domain.EconomyStore,
	achievements *AchievementService,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		settlement:   trade.NewSettlement(cfg.TradingFee, cfg.VolumeHoldMinimum.Duration),
		market:       market,
		profiles:     profiles,
		positions:    positions,
		ledger:       ledger,
		economy:      economy,
		achievements: achievements,
		logger:       logger.With(slog.String("component", "trade_service")),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// TradeInfo is the pre-trade quote a client renders before confirming.
type TradeInfo struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Balance float64 `json:"balance"`
	Held    float64 `json:"held"`
	MaxBuy  float64 `json:"max_buy"`
	FeeRate float64 `json:"fee_rate"`
}

// Info returns the current price, balance, holdings, and affordable maximum
// for one coin.
func (s *TradeService) Info(ctx context.Context, userID int64, symbol string) (TradeInfo, error) {
	price, err := s.market.Price(ctx, symbol)
	if err != nil {
		return TradeInfo{}, fmt.Errorf("trade_service: price for %s: %w", symbol, err)
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return TradeInfo{}, fmt.Errorf("trade_service: profile %d: %w", userID, err)
	}

	var held float64
	if pos, err := s.positions.Get(ctx, userID, symbol); err == nil {
		held = pos.Amount
	}

	return TradeInfo{
		Symbol:  symbol,
		Price:   price,
		Balance: profile.Balance,
		Held:    held,
		MaxBuy:  s.settlement.MaxBuy(profile.Balance, price),
		FeeRate: s.settlement.FeeRate,
	}, nil
}

// Buy purchases amount of the given coin at the live price. The fee lands in
// the tax pool; the position merges into any existing holding at a
// weighted-average cost basis.
func (s *TradeService) Buy(ctx context.Context, userID int64, symbol string, amount float64) (trade.Receipt, error) {
	if amount <= 0 {
		return trade.Receipt{}, fmt.Errorf("trade_service: buy amount must be positive, got %g", amount)
	}
	price, err := s.market.Price(ctx, symbol)
	if err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: price for %s: %w", symbol, err)
	}
	receipt := s.settlement.QuoteBuy(amount, price)
	now := s.now().UTC()

	existing, err := s.positions.Get(ctx, userID, symbol)
	if err != nil {
		existing = domain.SpotPosition{
			ID:       s.newID(),
			UserID:   userID,
			Symbol:   symbol,
			OpenedAt: now,
		}
	}
	merged := trade.MergeBuy(existing, amount, price)

	if err := s.positions.ApplyBuy(ctx, merged, receipt.Total); err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: buy %g %s: %w", amount, symbol, err)
	}

	s.appendLedger(ctx, domain.LedgerEntry{
		ID:          s.newID(),
		UserID:      userID,
		Type:        domain.EntryBuyCrypto,
		Amount:      -receipt.Total,
		Description: fmt.Sprintf("bought %.8f %s at %.2f", amount, symbol, price),
		CreatedAt:   now,
	})
	s.addTax(ctx, receipt.Fee)

	if s.achievements != nil {
		if _, err := s.achievements.Award(ctx, userID, AchFirstTrade); err != nil {
			s.logger.Warn("first trade award failed", slog.Any("error", err))
		}
	}

	s.logger.Info("buy executed",
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.Float64("amount", amount),
		slog.Float64("total_cost", receipt.Total))
	return receipt, nil
}

// Sell disposes amount of the given coin at the live price. Proceeds held
// long enough count toward the trading volume that unlocks the property
// market.
func (s *TradeService) Sell(ctx context.Context, userID int64, symbol string, amount float64) (trade.Receipt, error) {
	price, err := s.market.Price(ctx, symbol)
	if err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: price for %s: %w", symbol, err)
	}

	pos, err := s.positions.Get(ctx, userID, symbol)
	if err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: sell %s: %w", symbol, err)
	}
	remaining, err := trade.Remaining(pos, amount)
	if err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: sell %g %s: %w", amount, symbol, err)
	}

	receipt := s.settlement.QuoteSell(amount, price)
	now := s.now().UTC()
	volume := s.settlement.EligibleVolume(pos, receipt.Subtotal, now)

	if err := s.positions.ApplySell(ctx, pos, remaining, receipt.Total, volume); err != nil {
		return trade.Receipt{}, fmt.Errorf("trade_service: sell %g %s: %w", amount, symbol, err)
	}

	s.appendLedger(ctx, domain.LedgerEntry{
		ID:          s.newID(),
		UserID:      userID,
		Type:        domain.EntrySellCrypto,
		Amount:      receipt.Total,
		Description: fmt.Sprintf("sold %.8f %s at %.2f", amount, symbol, price),
		CreatedAt:   now,
	})
	s.addTax(ctx, receipt.Fee)

	if s.achievements != nil {
		s.achievements.CheckWealth(ctx, userID)
	}

	s.logger.Info("sell executed",
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.Float64("amount", amount),
		slog.Float64("payout", receipt.Total))
	return receipt, nil
}

// Holdings returns the user's spot positions.
func (s *TradeService) Holdings(ctx context.Context, userID int64) ([]domain.SpotPosition, error) {
	positions, err := s.positions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trade_service: holdings for %d: %w", userID, err)
	}
	return positions, nil
}

func (s *TradeService) appendLedger(ctx context.Context, entry domain.LedgerEntry) {
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("ledger append failed", slog.Any("error", err))
	}
}

func (s *TradeService) addTax(ctx context.Context, fee float64) {
	if s.economy == nil || fee <= 0 {
		return
	}
	if err := s.economy.AddToTaxPool(ctx, fee); err != nil {
		s.logger.Warn("tax pool update failed", slog.Any("error", err))
	}
}
