package economy

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTicker(t *testing.T) (*Ticker, *memory.ProfileStore, *memory.PropertyStore) {
	t.Helper()
	cfg := config.Defaults()
	profiles := memory.NewProfileStore(10_000)
	properties := memory.NewPropertyStore(profiles)
	ledger := memory.NewLedgerStore()

	ticker := NewTicker(cfg.Game, NewCatalog(cfg.Properties), properties, ledger, nil, discardLogger())
	return ticker, profiles, properties
}

func seedAsset(t *testing.T, profiles *memory.ProfileStore, properties *memory.PropertyStore, asset domain.PropertyAsset) {
	t.Helper()
	ctx := context.Background()
	_, err := profiles.Upsert(ctx, asset.UserID, "tester")
	require.NoError(t, err)
	// Buy debits the purchase price; use zero so the seed balance stays put.
	asset.PurchasePrice = 0
	require.NoError(t, properties.Buy(ctx, asset))
}

func TestRentForConditionFactor(t *testing.T) {
	ptype := domain.PropertyType{BaseRent: 450}

	assert.Equal(t, 450.0, RentFor(ptype, 100))
	assert.Equal(t, 450.0, RentFor(ptype, 80), "80 and above pays full rent")
	assert.Equal(t, 355.0, RentFor(ptype, 79), "below 80 scales with condition: floor(450*0.79)")
	assert.Equal(t, 225.0, RentFor(ptype, 50))
	assert.Equal(t, 0.0, RentFor(ptype, 0))
}

func TestTickCollectsRentPerCycle(t *testing.T) {
	ticker, profiles, properties := newTestTicker(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ticker.now = func() time.Time { return now }
	ticker.rng = rand.New(rand.NewSource(1))
	ticker.cfg.MaintenanceChance = 0 // isolate rent

	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "a1",
		UserID:          1,
		Type:            "apartment",
		Condition:       100,
		LastRentCollect: now.Add(-49 * time.Hour), // two full 24h cycles
		CreatedAt:       now.Add(-49 * time.Hour),
	})

	res, err := ticker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 900.0, res.RentPaid, "two cycles of 450")

	p, err := profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, 10_900.0, p.Balance, 1e-9)

	// A second run straight away pays nothing: no new cycle elapsed.
	res, err = ticker.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.RentPaid)
}

func TestTickRentScalesWithCondition(t *testing.T) {
	ticker, profiles, properties := newTestTicker(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ticker.now = func() time.Time { return now }
	ticker.cfg.MaintenanceChance = 0

	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "a1",
		UserID:          1,
		Type:            "apartment",
		Condition:       60,
		LastRentCollect: now.Add(-25 * time.Hour),
		CreatedAt:       now.Add(-25 * time.Hour),
	})

	res, err := ticker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 270.0, res.RentPaid, "floor(450 * 0.60)")
}

func TestTickDecayFlooredAtFifty(t *testing.T) {
	ticker, profiles, properties := newTestTicker(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ticker.now = func() time.Time { return now }
	ticker.cfg.MaintenanceChance = 0

	// Three months old: condition should drop to 100 - 3*2 = 94.
	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "young",
		UserID:          1,
		Type:            "garage",
		Condition:       100,
		LastRentCollect: now,
		CreatedAt:       now.Add(-3 * 30 * 24 * time.Hour),
	})
	// Ancient: decay alone never goes below 50.
	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "old",
		UserID:          1,
		Type:            "garage",
		Condition:       100,
		LastRentCollect: now,
		CreatedAt:       now.Add(-40 * 30 * 24 * time.Hour),
	})

	res, err := ticker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Decayed)

	young, err := properties.Get(ctx, "young")
	require.NoError(t, err)
	assert.Equal(t, 94, young.Condition)

	old, err := properties.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 50, old.Condition)
}

func TestTickMaintenanceDamagesAndDebits(t *testing.T) {
	ticker, profiles, properties := newTestTicker(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ticker.now = func() time.Time { return now }
	ticker.cfg.MaintenanceChance = 1.0 // always hit
	ticker.rng = rand.New(rand.NewSource(42))

	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "a1",
		UserID:          1,
		Type:            "house", // maintenance cost 350
		Condition:       100,
		LastRentCollect: now,
		CreatedAt:       now,
	})

	res, err := ticker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Maintenance)

	asset, err := properties.Get(ctx, "a1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, asset.Condition, 100-maxDamage)
	assert.LessOrEqual(t, asset.Condition, 100-minDamage)

	p, err := profiles.Get(ctx, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, 10_000.0-350.0, p.Balance, 1e-9)
}

func TestTickContinuesPastUnknownType(t *testing.T) {
	ticker, profiles, properties := newTestTicker(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ticker.now = func() time.Time { return now }
	ticker.cfg.MaintenanceChance = 0

	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "bad",
		UserID:          1,
		Type:            "castle", // not in the catalog
		Condition:       100,
		LastRentCollect: now.Add(-25 * time.Hour),
		CreatedAt:       now,
	})
	seedAsset(t, profiles, properties, domain.PropertyAsset{
		ID:              "good",
		UserID:          1,
		Type:            "garage",
		Condition:       100,
		LastRentCollect: now.Add(-25 * time.Hour),
		CreatedAt:       now,
	})

	res, err := ticker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 110.0, res.RentPaid, "the healthy asset still pays")
}

func TestWorldEventEmitterChance(t *testing.T) {
	emitter := NewWorldEventEmitter(0, nil, nil, discardLogger())
	ev, err := emitter.MaybeEmit(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ev, "zero chance never fires")

	emitter = NewWorldEventEmitter(1, nil, nil, discardLogger())
	ev, err = emitter.MaybeEmit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Message)
}
