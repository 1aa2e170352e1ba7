package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/feed"
	"github.com/valuetycoon/tycoond/internal/store/memory"
)

type tradeFixture struct {
	svc       *TradeService
	quotes    *memory.QuoteStore
	profiles  *memory.ProfileStore
	positions *memory.SpotPositionStore
	ledger    *memory.LedgerStore
	economy   *memory.EconomyStore
}

func newTradeFixture(t *testing.T) *tradeFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()

	quotes := memory.NewQuoteStore()
	require.NoError(t, quotes.UpsertQuotes(ctx, []domain.Quote{
		{Symbol: "bitcoin", Price: 60_000, ObservedAt: time.Now().UTC()},
	}))
	market := feed.New(nil, quotes, nil, nil, nil, cfg.Feed, logger)

	profiles := memory.NewProfileStore(cfg.Game.InitialCash)
	positions := memory.NewSpotPositionStore(profiles)
	properties := memory.NewPropertyStore(profiles)
	ledger := memory.NewLedgerStore()
	economy := memory.NewEconomyStore()

	achievements := NewAchievementService(
		memory.NewAchievementStore(), profiles, properties, ledger, nil, logger,
	)
	svc := NewTradeService(
		cfg.Game, market, profiles, positions, ledger, economy, achievements, logger,
	)

	_, err := profiles.Upsert(ctx, 1, "tester")
	require.NoError(t, err)

	return &tradeFixture{
		svc:       svc,
		quotes:    quotes,
		profiles:  profiles,
		positions: positions,
		ledger:    ledger,
		economy:   economy,
	}
}

func TestBuyDebitsBalanceAndAwardsFirstTrade(t *testing.T) {
	fx := newTradeFixture(t)
	ctx := context.Background()

	receipt, err := fx.svc.Buy(ctx, 1, "bitcoin", 0.1)
	require.NoError(t, err)

	// Subtotal 6000, fee 30, total 6030.
	assert.InEpsilon(t, 6_000.0, receipt.Subtotal, 1e-9)
	assert.InEpsilon(t, 30.0, receipt.Fee, 1e-9)
	assert.InEpsilon(t, 6_030.0, receipt.Total, 1e-9)

	// Starting 10000, minus 6030, plus the 100 first-trade reward.
	p, err := fx.profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, 10_000.0-6_030.0+100.0, p.Balance, 1e-9)

	pos, err := fx.positions.Get(ctx, 1, "bitcoin")
	require.NoError(t, err)
	assert.InEpsilon(t, 0.1, pos.Amount, 1e-9)
	assert.InEpsilon(t, 60_000.0, pos.AvgBuyPrice, 1e-9)

	// The fee lands in the tax pool.
	pool, err := fx.economy.TaxPool(ctx)
	require.NoError(t, err)
	assert.InEpsilon(t, 30.0, pool, 1e-9)
}

func TestBuyMergesAtWeightedAverage(t *testing.T) {
	fx := newTradeFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Buy(ctx, 1, "bitcoin", 0.05)
	require.NoError(t, err)

	// Reprice and buy the same amount again: average must land in between.
	require.NoError(t, fx.quotes.UpsertQuotes(ctx, []domain.Quote{
		{Symbol: "bitcoin", Price: 80_000, ObservedAt: time.Now().UTC()},
	}))

	_, err = fx.svc.Buy(ctx, 1, "bitcoin", 0.05)
	require.NoError(t, err)

	pos, err := fx.positions.Get(ctx, 1, "bitcoin")
	require.NoError(t, err)
	assert.InEpsilon(t, 0.1, pos.Amount, 1e-9)
	assert.InEpsilon(t, 70_000.0, pos.AvgBuyPrice, 1e-9)
}

func TestBuyRejectsInsufficientFunds(t *testing.T) {
	fx := newTradeFixture(t)

	_, err := fx.svc.Buy(context.Background(), 1, "bitcoin", 1.0)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestSellRejectsOverselling(t *testing.T) {
	fx := newTradeFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Buy(ctx, 1, "bitcoin", 0.1)
	require.NoError(t, err)

	_, err = fx.svc.Sell(ctx, 1, "bitcoin", 0.2)
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)
}

func TestSellVolumeRequiresMinimumHold(t *testing.T) {
	fx := newTradeFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Buy(ctx, 1, "bitcoin", 0.1)
	require.NoError(t, err)

	// Immediate flip: proceeds do not count toward trading volume.
	receipt, err := fx.svc.Sell(ctx, 1, "bitcoin", 0.05)
	require.NoError(t, err)
	assert.InEpsilon(t, 3_000.0, receipt.Subtotal, 1e-9)

	p, err := fx.profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, p.TradingVolume)

	// Sell again after the hold minimum: now the proceeds accrue.
	fx.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = fx.svc.Sell(ctx, 1, "bitcoin", 0.05)
	require.NoError(t, err)

	p, err = fx.profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, 3_000.0, p.TradingVolume, 1e-9)

	// Position sold down to dust is gone.
	_, err = fx.positions.Get(ctx, 1, "bitcoin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSellBooksLedgerEntries(t *testing.T) {
	fx := newTradeFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Buy(ctx, 1, "bitcoin", 0.1)
	require.NoError(t, err)
	_, err = fx.svc.Sell(ctx, 1, "bitcoin", 0.1)
	require.NoError(t, err)

	entries, err := fx.ledger.ListByUser(ctx, 1, domain.ListOpts{Limit: 10})
	require.NoError(t, err)

	var kinds []domain.LedgerEntryType
	for _, e := range entries {
		kinds = append(kinds, e.Type)
	}
	assert.Contains(t, kinds, domain.EntryBuyCrypto)
	assert.Contains(t, kinds, domain.EntrySellCrypto)
	assert.Contains(t, kinds, domain.EntryAchievement)
}
