package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
)

// Maintenance events knock between minDamage and maxDamage points off the
// condition.
const (
	minDamage = 5
	maxDamage = 20

	// conditionFloor is the lowest condition time decay alone can reach.
	// Maintenance damage can go below it.
	conditionFloor = 50

	decayMonth = 30 * 24 * time.Hour
)

// TickResult summarizes one economy tick for logging and tests.
type TickResult struct {
	Assets      int
	RentPaid    float64
	Maintenance int
	Decayed     int
	Errors      int
}

// Ticker runs the periodic property economy: rent collection, random
// maintenance events, and condition decay. One failing asset never stops the
// tick for the others.
type Ticker struct {
	cfg        config.GameConfig
	catalog    *Catalog
	properties domain.PropertyStore
	ledger     domain.LedgerStore
	notifier   domain.Notifier
	logger     *slog.Logger
	now        func() time.Time
	rng        *rand.Rand
	newID      func() string
}

// NewTicker creates an economy ticker. The notifier may be nil.
func NewTicker(
	cfg config.GameConfig,
	catalog *Catalog,
	properties domain.PropertyStore,
	ledger domain.LedgerStore,
	notifier domain.Notifier,
	logger *slog.Logger,
) *Ticker {
	return &Ticker{
		cfg:        cfg,
		catalog:    catalog,
		properties: properties,
		ledger:     ledger,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "economy")),
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:      func() string { return uuid.New().String() },
	}
}

// Run executes one full economy tick over every owned asset.
func (t *Ticker) Run(ctx context.Context) (TickResult, error) {
	assets, err := t.properties.ListAll(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("economy: list assets: %w", err)
	}

	res := TickResult{Assets: len(assets)}
	now := t.now().UTC()

	for _, asset := range assets {
		ptype, ok := t.catalog.Get(asset.Type)
		if !ok {
			t.logger.Warn("asset with unknown type", slog.String("asset_id", asset.ID), slog.String("type", asset.Type))
			res.Errors++
			continue
		}

		decayed, err := t.decay(ctx, &asset, now)
		if err != nil {
			t.logger.Warn("decay failed", slog.String("asset_id", asset.ID), slog.Any("error", err))
			res.Errors++
		}
		if decayed {
			res.Decayed++
		}

		rent, err := t.collectRent(ctx, asset, ptype, now)
		if err != nil {
			t.logger.Warn("rent collection failed", slog.String("asset_id", asset.ID), slog.Any("error", err))
			res.Errors++
		}
		res.RentPaid += rent

		hit, err := t.maybeMaintain(ctx, asset, ptype, now)
		if err != nil {
			t.logger.Warn("maintenance failed", slog.String("asset_id", asset.ID), slog.Any("error", err))
			res.Errors++
		}
		if hit {
			res.Maintenance++
		}
	}

	t.logger.Info("economy tick done",
		slog.Int("assets", res.Assets),
		slog.Float64("rent_paid", res.RentPaid),
		slog.Int("maintenance_events", res.Maintenance),
		slog.Int("errors", res.Errors))
	return res, nil
}

// decay lowers the condition by the configured rate per month of age, never
// below the floor. It updates the asset in place so later steps see the new
// condition.
func (t *Ticker) decay(ctx context.Context, asset *domain.PropertyAsset, now time.Time) (bool, error) {
	if asset.Condition <= conditionFloor {
		return false, nil
	}

	months := int(now.Sub(asset.CreatedAt) / decayMonth)
	if months < 1 {
		return false, nil
	}

	target := 100 - months*t.cfg.ConditionDecayRate
	if target < conditionFloor {
		target = conditionFloor
	}
	if asset.Condition <= target {
		return false, nil
	}

	if err := t.properties.SetCondition(ctx, asset.ID, target); err != nil {
		return false, err
	}
	asset.Condition = target
	return true, nil
}

// collectRent pays out rent for every whole cycle elapsed since the last
// collection. The store's timestamp guard keeps overlapping ticks from
// paying the same cycle twice.
func (t *Ticker) collectRent(ctx context.Context, asset domain.PropertyAsset, ptype domain.PropertyType, now time.Time) (float64, error) {
	cycle := time.Duration(t.cfg.RentCycleHours) * time.Hour
	elapsed := now.Sub(asset.LastRentCollect)
	cycles := int(elapsed / cycle)
	if cycles < 1 {
		return 0, nil
	}

	rent := RentFor(ptype, asset.Condition) * float64(cycles)
	collectAt := asset.LastRentCollect.Add(time.Duration(cycles) * cycle)

	if err := t.properties.CollectRent(ctx, asset.ID, asset.UserID, rent, collectAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Sold or already collected by a concurrent tick.
			return 0, nil
		}
		return 0, err
	}
	if rent <= 0 {
		return 0, nil
	}

	t.appendLedger(ctx, domain.LedgerEntry{
		ID:          t.newID(),
		UserID:      asset.UserID,
		Type:        domain.EntryRent,
		Amount:      rent,
		Description: fmt.Sprintf("rent from %s (condition %d%%)", ptype.Name, asset.Condition),
		CreatedAt:   now,
	})
	t.notify(ctx, asset.UserID, domain.EventRent,
		"Rent collected",
		fmt.Sprintf("%s paid %.0f rent.", ptype.Name, rent))
	return rent, nil
}

// maybeMaintain rolls the maintenance dice for one asset. On a hit the
// condition drops by a random amount and the maintenance cost is debited,
// down to a zero balance at worst.
func (t *Ticker) maybeMaintain(ctx context.Context, asset domain.PropertyAsset, ptype domain.PropertyType, now time.Time) (bool, error) {
	if t.rng.Float64() >= t.cfg.MaintenanceChance {
		return false, nil
	}

	damage := minDamage + t.rng.Intn(maxDamage-minDamage+1)
	condition := asset.Condition - damage
	if condition < 0 {
		condition = 0
	}

	if err := t.properties.ApplyMaintenance(ctx, asset.ID, asset.UserID, condition, ptype.MaintenanceCost); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	t.appendLedger(ctx, domain.LedgerEntry{
		ID:          t.newID(),
		UserID:      asset.UserID,
		Type:        domain.EntryMaintenance,
		Amount:      -ptype.MaintenanceCost,
		Description: fmt.Sprintf("maintenance on %s (-%d condition)", ptype.Name, damage),
		CreatedAt:   now,
	})
	t.notify(ctx, asset.UserID, domain.EventMaintenance,
		"Maintenance required",
		fmt.Sprintf("%s needed maintenance: %.0f paid, condition now %d%%.", ptype.Name, ptype.MaintenanceCost, condition))
	return true, nil
}

func (t *Ticker) appendLedger(ctx context.Context, entry domain.LedgerEntry) {
	if t.ledger == nil {
		return
	}
	if err := t.ledger.Append(ctx, entry); err != nil {
		t.logger.Warn("ledger append failed", slog.Any("error", err))
	}
}

func (t *Ticker) notify(ctx context.Context, userID int64, kind domain.EventKind, title, message string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, userID, kind, title, message); err != nil {
		t.logger.Warn("notify failed", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}
