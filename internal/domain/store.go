package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// QuoteStore persists the market quote cache and the price history series.
type QuoteStore interface {
	// UpsertQuotes writes the whole batch atomically: readers never observe
	// a partially refreshed quote set.
	UpsertQuotes(ctx context.Context, quotes []Quote) error
	LatestQuotes(ctx context.Context) (QuoteSet, error)
	AppendHistory(ctx context.Context, points []PricePoint) error
	History(ctx context.Context, symbol string, since time.Time) ([]PricePoint, error)
}

// ProfileStore persists player accounts. AdjustBalance is the atomic balance
// primitive every financial mutation goes through.
type ProfileStore interface {
	Upsert(ctx context.Context, id int64, username string) (Profile, error)
	Get(ctx context.Context, id int64) (Profile, error)
	AdjustBalance(ctx context.Context, id int64, delta float64) error
	TopByBalance(ctx context.Context, limit int) ([]Profile, error)
	ListIDs(ctx context.Context, limit int) ([]int64, error)
}

// SpotPositionStore persists unleveraged holdings. The mutating operations
// fuse the balance adjustment and the record write into one transaction,
// matching the all-or-nothing contract of the persistence boundary.
type SpotPositionStore interface {
	Get(ctx context.Context, userID int64, symbol string) (SpotPosition, error)
	ListByUser(ctx context.Context, userID int64) ([]SpotPosition, error)
	// ApplyBuy debits totalCost from the owner and upserts the merged
	// position in the same transaction.
	ApplyBuy(ctx context.Context, pos SpotPosition, totalCost float64) error
	// ApplySell credits payout, accrues eligible trading volume, and writes
	// the remaining amount; a remaining amount below the dust epsilon
	// deletes the position instead.
	ApplySell(ctx context.Context, pos SpotPosition, remaining, payout, volume float64) error
}

// LeverageStore persists leveraged positions.
type LeverageStore interface {
	Get(ctx context.Context, userID int64, symbol string) (LeveragedPosition, error)
	ListOpen(ctx context.Context) ([]LeveragedPosition, error)
	// Open debits totalCost (margin plus fee) and inserts the position.
	Open(ctx context.Context, pos LeveragedPosition, totalCost float64) error
	// Close credits payout and deletes the position (user-invoked close).
	Close(ctx context.Context, id string, userID int64, payout float64) error
	// Liquidate deletes the position without any credit: the margin was
	// debited when the position was opened and is now fully lost.
	Liquidate(ctx context.Context, id string) error
}

// PropertyStore persists property assets. Rent, maintenance, and repair fuse
// the condition/timestamp write with the balance mutation.
type PropertyStore interface {
	Get(ctx context.Context, id string) (PropertyAsset, error)
	ListByUser(ctx context.Context, userID int64) ([]PropertyAsset, error)
	ListAll(ctx context.Context) ([]PropertyAsset, error)
	Buy(ctx context.Context, asset PropertyAsset) error
	Sell(ctx context.Context, id string, userID int64, proceeds float64) error
	CollectRent(ctx context.Context, id string, userID int64, rent float64, at time.Time) error
	ApplyMaintenance(ctx context.Context, id string, userID int64, condition int, cost float64) error
	SetCondition(ctx context.Context, id string, condition int) error
	Repair(ctx context.Context, id string, userID int64, cost float64) error
}

// LedgerStore persists the append-only transaction history.
type LedgerStore interface {
	Append(ctx context.Context, e LedgerEntry) error
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]LedgerEntry, error)
	// ListBefore and DeleteBefore support cold-storage archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]LedgerEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AchievementStore records one-time unlocks.
type AchievementStore interface {
	// Award records the unlock and returns true if it was newly granted.
	Award(ctx context.Context, userID int64, achievementID string, at time.Time) (bool, error)
	List(ctx context.Context, userID int64) ([]string, error)
}

// EconomyStore holds global economy state: the tax pool fed by trading fees
// and paid out as season rewards.
type EconomyStore interface {
	AddToTaxPool(ctx context.Context, amount float64) error
	TaxPool(ctx context.Context) (float64, error)
	ResetTaxPool(ctx context.Context) error
}
