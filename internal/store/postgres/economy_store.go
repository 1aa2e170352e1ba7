package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// EconomyStore implements domain.EconomyStore using PostgreSQL. Global state
// lives in a single guarded row.
type EconomyStore struct {
	pool *pgxpool.Pool
}

// NewEconomyStore creates a new EconomyStore backed by the given connection
// pool.
func NewEconomyStore(pool *pgxpool.Pool) *EconomyStore {
	return &EconomyStore{pool: pool}
}

// AddToTaxPool accumulates trading fees into the global tax pool.
func (s *EconomyStore) AddToTaxPool(ctx context.Context, amount float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE global_economy SET tax_pool = tax_pool + $1 WHERE id = 1`, amount)
	if err != nil {
		return fmt.Errorf("postgres: add to tax pool: %w", err)
	}
	return nil
}

// TaxPool returns the current tax pool balance.
func (s *EconomyStore) TaxPool(ctx context.Context) (float64, error) {
	var pool float64
	err := s.pool.QueryRow(ctx,
		`SELECT tax_pool FROM global_economy WHERE id = 1`).Scan(&pool)
	if err != nil {
		return 0, fmt.Errorf("postgres: read tax pool: %w", err)
	}
	return pool, nil
}

// ResetTaxPool zeroes the tax pool after a season payout.
func (s *EconomyStore) ResetTaxPool(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE global_economy SET tax_pool = 0 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("postgres: reset tax pool: %w", err)
	}
	return nil
}

var (
	_ domain.QuoteStore        = (*QuoteStore)(nil)
	_ domain.ProfileStore      = (*ProfileStore)(nil)
	_ domain.SpotPositionStore = (*SpotPositionStore)(nil)
	_ domain.LeverageStore     = (*LeverageStore)(nil)
	_ domain.PropertyStore     = (*PropertyStore)(nil)
	_ domain.LedgerStore       = (*LedgerStore)(nil)
	_ domain.AchievementStore  = (*AchievementStore)(nil)
	_ domain.EconomyStore      = (*EconomyStore)(nil)
)
