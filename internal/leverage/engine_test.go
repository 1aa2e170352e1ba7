package leverage

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
	"github.com/valuetycoon/tycoond/internal/store/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.ProfileStore, *memory.LeverageStore) {
	t.Helper()
	profiles := memory.NewProfileStore(10_000)
	positions := memory.NewLeverageStore(profiles)
	ledger := memory.NewLedgerStore()
	economy := memory.NewEconomyStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := NewEngine(config.Defaults().Leverage, 0.005, positions, ledger, economy, nil, logger)
	return e, profiles, positions
}

func seedUser(t *testing.T, profiles *memory.ProfileStore, id int64) {
	t.Helper()
	_, err := profiles.Upsert(context.Background(), id, "tester")
	require.NoError(t, err)
}

func TestLiquidationPrice(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// 10x at 60000: 60000 * (1 - 0.9/10) = 54600.
	assert.InEpsilon(t, 54_600.0, e.LiquidationPrice(60_000, 10), 1e-9)

	// Higher leverage liquidates closer to the entry.
	prev := 0.0
	for _, lv := range []int{2, 5, 10, 20, 50} {
		liq := e.LiquidationPrice(60_000, lv)
		assert.Greater(t, liq, prev, "liquidation price must rise with leverage")
		assert.Less(t, liq, 60_000.0)
		prev = liq
	}
}

func TestOpenDebitsMarginPlusNotionalFee(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, profiles, 1)

	pos, err := e.Open(ctx, 1, "bitcoin", 1_000, 10, 60_000)
	require.NoError(t, err)

	// Notional 10000, fee 50, total cost 1050.
	p, err := profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, 10_000.0-1_050.0, p.Balance, 1e-9)

	assert.InEpsilon(t, 10_000.0/60_000.0, pos.Amount, 1e-9)
	assert.InEpsilon(t, 1_000.0, pos.Margin(), 1e-9)
	assert.InEpsilon(t, 54_600.0, pos.LiquidationPrice, 1e-9)
}

func TestOpenRejectsInvalidLeverage(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	seedUser(t, profiles, 1)

	_, err := e.Open(context.Background(), 1, "bitcoin", 1_000, 3, 60_000)
	assert.ErrorIs(t, err, domain.ErrInvalidLeverage)

	_, err = e.Open(context.Background(), 1, "bitcoin", 1_000, 100, 60_000)
	assert.ErrorIs(t, err, domain.ErrInvalidLeverage)
}

func TestOpenRejectsDuplicate(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, profiles, 1)

	_, err := e.Open(ctx, 1, "bitcoin", 100, 5, 60_000)
	require.NoError(t, err)

	_, err = e.Open(ctx, 1, "bitcoin", 100, 5, 60_000)
	assert.ErrorIs(t, err, domain.ErrDuplicateLeverage)

	// A different coin is fine.
	_, err = e.Open(ctx, 1, "ethereum", 100, 5, 2_150)
	assert.NoError(t, err)
}

func TestOpenRejectsInsufficientFunds(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	seedUser(t, profiles, 1)

	_, err := e.Open(context.Background(), 1, "bitcoin", 20_000, 10, 60_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestEvaluateRiskLevels(t *testing.T) {
	e, _, _ := newTestEngine(t)
	now := time.Now()

	pos := domain.LeveragedPosition{
		EntryPrice:       60_000,
		Amount:           10_000.0 / 60_000.0,
		Leverage:         10,
		LiquidationPrice: 54_600,
	}

	cases := []struct {
		price float64
		level domain.RiskLevel
	}{
		{54_600, domain.RiskLiquidated},
		{54_000, domain.RiskLiquidated},
		{55_000, domain.RiskExtreme}, // 0.73% above
		{60_000, domain.RiskHigh},    // 9.9% above
		{65_000, domain.RiskMedium},  // 19% above
	}
	for _, tc := range cases {
		ev := e.Evaluate(pos, tc.price, now)
		assert.Equal(t, tc.level, ev.Level, "price %g", tc.price)
	}

	// Leveraged PnL: price down 5% at 10x is -50%.
	ev := e.Evaluate(pos, 57_000, now)
	assert.InEpsilon(t, -50.0, ev.PnLPercent, 1e-9)
}

func TestRiskScanSkipsUnquotedSymbols(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, profiles, 1)

	_, err := e.Open(ctx, 1, "bitcoin", 100, 10, 60_000)
	require.NoError(t, err)
	_, err = e.Open(ctx, 1, "litecoin", 100, 10, 40)
	require.NoError(t, err)

	events, err := e.RiskScan(ctx, domain.QuoteSet{
		"bitcoin": {Symbol: "bitcoin", Price: 59_000},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bitcoin", events[0].Position.Symbol)
}

type recordingNotifier struct {
	kinds []domain.EventKind
}

func (n *recordingNotifier) Notify(_ context.Context, _ int64, kind domain.EventKind, _, _ string) error {
	n.kinds = append(n.kinds, kind)
	return nil
}

func TestRiskScanWarnsOnHighAndExtreme(t *testing.T) {
	profiles := memory.NewProfileStore(10_000)
	positions := memory.NewLeverageStore(profiles)
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(config.Defaults().Leverage, 0.005,
		positions, memory.NewLedgerStore(), memory.NewEconomyStore(), notifier, logger)

	ctx := context.Background()
	seedUser(t, profiles, 1)

	// 10x at 60000 liquidates at 54600: 55000 is extreme, 60000 is high.
	_, err := e.Open(ctx, 1, "bitcoin", 100, 10, 60_000)
	require.NoError(t, err)
	_, err = e.Open(ctx, 1, "ethereum", 100, 10, 2_150)
	require.NoError(t, err)

	// Ethereum at 2500 sits well above its 1956.5 liquidation price.
	_, err = e.RiskScan(ctx, domain.QuoteSet{
		"bitcoin":  {Symbol: "bitcoin", Price: 55_000},
		"ethereum": {Symbol: "ethereum", Price: 2_500},
	})
	require.NoError(t, err)
	require.Len(t, notifier.kinds, 1, "extreme warns, medium stays quiet")
	assert.Equal(t, domain.EventLiquidationWarning, notifier.kinds[0])

	// A position in the high band gets warned too, not just extreme.
	notifier.kinds = nil
	_, err = e.RiskScan(ctx, domain.QuoteSet{
		"bitcoin": {Symbol: "bitcoin", Price: 60_000},
	})
	require.NoError(t, err)
	require.Len(t, notifier.kinds, 1)
	assert.Equal(t, domain.EventLiquidationWarning, notifier.kinds[0])
}

func TestLiquidateRemovesPositionWithoutCredit(t *testing.T) {
	e, profiles, positions := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, profiles, 1)

	pos, err := e.Open(ctx, 1, "bitcoin", 1_000, 10, 60_000)
	require.NoError(t, err)
	balanceAfterOpen, _ := profiles.Get(ctx, 1)

	require.NoError(t, e.Liquidate(ctx, pos, 54_000))

	_, err = positions.Get(ctx, 1, "bitcoin")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, _ := profiles.Get(ctx, 1)
	assert.Equal(t, balanceAfterOpen.Balance, p.Balance, "liquidation must not credit anything")

	// Liquidating the same position again is a no-op.
	assert.NoError(t, e.Liquidate(ctx, pos, 54_000))
}

func TestClosePaysMarginPlusPnL(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, profiles, 1)

	_, err := e.Open(ctx, 1, "bitcoin", 1_000, 10, 60_000)
	require.NoError(t, err)
	after, _ := profiles.Get(ctx, 1)

	// Price up 5% at 10x: payout = 1000 + 0.05*10000 = 1500.
	payout, err := e.Close(ctx, 1, "bitcoin", 63_000)
	require.NoError(t, err)
	assert.InEpsilon(t, 1_500.0, payout, 1e-9)

	p, _ := profiles.Get(ctx, 1)
	assert.InEpsilon(t, after.Balance+1_500.0, p.Balance, 1e-9)
}
