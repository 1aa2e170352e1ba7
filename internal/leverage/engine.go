// Package leverage implements leveraged long positions: opening, risk
// classification, closing, and forced liquidation.
package leverage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
)

// Risk level distance thresholds, in percent above the liquidation price.
const (
	extremeDistancePct = 5.0
	highDistancePct    = 15.0
)

// Engine opens, evaluates, and liquidates leveraged positions. Price inputs
// come from the caller so that the engine stays independent of the feed.
type Engine struct {
	cfg       config.LeverageConfig
	feeRate   float64
	positions domain.LeverageStore
	ledger    domain.LedgerStore
	economy   domain.EconomyStore
	notifier  domain.Notifier
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine creates a leverage engine. The notifier may be nil.
func NewEngine(
	cfg config.LeverageConfig,
	feeRate float64,
	positions domain.LeverageStore,
	ledger domain.LedgerStore,
	economy domain.EconomyStore,
	notifier domain.Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		feeRate:   feeRate,
		positions: positions,
		ledger:    ledger,
		economy:   economy,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "leverage")),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// LiquidationPrice returns the price at which a long opened at entry with the
// given leverage is forcibly closed. Higher leverage moves the trigger closer
// to the entry.
func (e *Engine) LiquidationPrice(entry float64, leverage int) float64 {
	return entry * (1 - e.cfg.LiquidationThreshold/float64(leverage))
}

// allowed reports whether the leverage value is one of the configured steps.
func (e *Engine) allowed(leverage int) bool {
	for _, lv := range e.cfg.Available {
		if lv == leverage {
			return true
		}
	}
	return false
}

// Open commits margin to a new leveraged long at the given market price. The
// fee is charged on the notional, not the margin, so high leverage pays
// proportionally more. At most one position per (user, symbol) may be open.
func (e *Engine) Open(ctx context.Context, userID int64, symbol string, margin float64, leverage int, price float64) (domain.LeveragedPosition, error) {
	if !e.allowed(leverage) {
		return domain.LeveragedPosition{}, domain.ErrInvalidLeverage
	}
	if margin <= 0 {
		return domain.LeveragedPosition{}, fmt.Errorf("leverage: margin must be positive, got %g", margin)
	}
	if price <= 0 {
		return domain.LeveragedPosition{}, fmt.Errorf("leverage: price must be positive, got %g", price)
	}

	notional := margin * float64(leverage)
	fee := notional * e.feeRate
	totalCost := margin + fee
	now := e.now().UTC()

	pos := domain.LeveragedPosition{
		ID:               e.newID(),
		UserID:           userID,
		Symbol:           symbol,
		Amount:           notional / price,
		EntryPrice:       price,
		Leverage:         leverage,
		LiquidationPrice: e.LiquidationPrice(price, leverage),
		OpenedAt:         now,
	}

	if err := e.positions.Open(ctx, pos, totalCost); err != nil {
		return domain.LeveragedPosition{}, fmt.Errorf("leverage: open %s x%d: %w", symbol, leverage, err)
	}

	e.appendLedger(ctx, domain.LedgerEntry{
		ID:          e.newID(),
		UserID:      userID,
		Type:        domain.EntryLeverageTrade,
		Amount:      -totalCost,
		Description: fmt.Sprintf("opened %gx %s long at %.2f", float64(leverage), symbol, price),
		CreatedAt:   now,
	})
	e.addTax(ctx, fee)

	e.logger.Info("position opened",
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.Int("leverage", leverage),
		slog.Float64("margin", margin),
		slog.Float64("liquidation_price", pos.LiquidationPrice))
	return pos, nil
}

// Evaluate classifies one position against the current price. It is pure:
// scans call it per position and decide what to do with the events.
func (e *Engine) Evaluate(pos domain.LeveragedPosition, price float64, at time.Time) domain.RiskEvent {
	ev := domain.RiskEvent{
		Position:     pos,
		CurrentPrice: price,
		EvaluatedAt:  at,
	}
	ev.PnLPercent = (price - pos.EntryPrice) / pos.EntryPrice * float64(pos.Leverage) * 100
	ev.DistancePct = (price - pos.LiquidationPrice) / pos.LiquidationPrice * 100

	switch {
	case price <= pos.LiquidationPrice:
		ev.Level = domain.RiskLiquidated
	case ev.DistancePct < extremeDistancePct:
		ev.Level = domain.RiskExtreme
	case ev.DistancePct < highDistancePct:
		ev.Level = domain.RiskHigh
	default:
		ev.Level = domain.RiskMedium
	}
	return ev
}

// RiskScan evaluates every open position against the given quotes. The scan
// itself never mutates positions; it returns the events and sends warnings
// for positions close to liquidation. Positions whose symbol has no quote are
// skipped.
func (e *Engine) RiskScan(ctx context.Context, quotes domain.QuoteSet) ([]domain.RiskEvent, error) {
	open, err := e.positions.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("leverage: list open positions: %w", err)
	}

	now := e.now().UTC()
	events := make([]domain.RiskEvent, 0, len(open))
	for _, pos := range open {
		q, ok := quotes[pos.Symbol]
		if !ok {
			e.logger.Warn("no quote for open position",
				slog.String("symbol", pos.Symbol),
				slog.String("position_id", pos.ID))
			continue
		}

		ev := e.Evaluate(pos, q.Price, now)
		events = append(events, ev)

		if ev.Level == domain.RiskExtreme || ev.Level == domain.RiskHigh {
			e.notify(ctx, pos.UserID, domain.EventLiquidationWarning,
				"Liquidation warning",
				fmt.Sprintf("Your %dx %s long is %.1f%% above liquidation (%.2f).",
					pos.Leverage, pos.Symbol, ev.DistancePct, pos.LiquidationPrice))
		}
	}
	return events, nil
}

// Liquidate forcibly closes a position that hit its liquidation price. The
// margin was debited at open time and is lost; no balance changes here.
func (e *Engine) Liquidate(ctx context.Context, pos domain.LeveragedPosition, price float64) error {
	if err := e.positions.Liquidate(ctx, pos.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Already gone, e.g. closed by the user between scan and here.
			return nil
		}
		return fmt.Errorf("leverage: liquidate %s: %w", pos.ID, err)
	}

	now := e.now().UTC()
	e.appendLedger(ctx, domain.LedgerEntry{
		ID:          e.newID(),
		UserID:      pos.UserID,
		Type:        domain.EntryLiquidation,
		Amount:      0,
		Description: fmt.Sprintf("%dx %s long liquidated at %.2f, margin %.2f lost", pos.Leverage, pos.Symbol, price, pos.Margin()),
		CreatedAt:   now,
	})
	e.notify(ctx, pos.UserID, domain.EventLiquidation,
		"Position liquidated",
		fmt.Sprintf("Your %dx %s long was liquidated at %.2f. Margin of %.2f is lost.",
			pos.Leverage, pos.Symbol, price, pos.Margin()))

	e.logger.Info("position liquidated",
		slog.Int64("user_id", pos.UserID),
		slog.String("symbol", pos.Symbol),
		slog.Float64("price", price),
		slog.Float64("margin_lost", pos.Margin()))
	return nil
}

// Close settles a position at the current price on the user's request. The
// payout is the margin plus leveraged PnL, floored at zero.
func (e *Engine) Close(ctx context.Context, userID int64, symbol string, price float64) (float64, error) {
	pos, err := e.positions.Get(ctx, userID, symbol)
	if err != nil {
		return 0, fmt.Errorf("leverage: close %s: %w", symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("leverage: price must be positive, got %g", price)
	}

	payout := pos.Margin() + (price-pos.EntryPrice)*pos.Amount
	if payout < 0 {
		payout = 0
	}

	if err := e.positions.Close(ctx, pos.ID, userID, payout); err != nil {
		return 0, fmt.Errorf("leverage: close %s: %w", symbol, err)
	}

	e.appendLedger(ctx, domain.LedgerEntry{
		ID:          e.newID(),
		UserID:      userID,
		Type:        domain.EntryLeverageTrade,
		Amount:      payout,
		Description: fmt.Sprintf("closed %dx %s long at %.2f", pos.Leverage, symbol, price),
		CreatedAt:   e.now().UTC(),
	})

	e.logger.Info("position closed",
		slog.Int64("user_id", userID),
		slog.String("symbol", symbol),
		slog.Float64("payout", payout))
	return payout, nil
}

func (e *Engine) appendLedger(ctx context.Context, entry domain.LedgerEntry) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Append(ctx, entry); err != nil {
		e.logger.Warn("ledger append failed", slog.Any("error", err))
	}
}

func (e *Engine) addTax(ctx context.Context, fee float64) {
	if e.economy == nil || fee <= 0 {
		return
	}
	if err := e.economy.AddToTaxPool(ctx, fee); err != nil {
		e.logger.Warn("tax pool update failed", slog.Any("error", err))
	}
}

func (e *Engine) notify(ctx context.Context, userID int64, kind domain.EventKind, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, kind, title, message); err != nil {
		e.logger.Warn("notify failed", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}
