package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// PropertyStore implements domain.PropertyStore using PostgreSQL. The
// rent/maintenance/repair operations fuse the asset write with the owner's
// balance mutation in one transaction.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore creates a new PropertyStore backed by the given connection
// pool.
func NewPropertyStore(pool *pgxpool.Pool) *PropertyStore {
	return &PropertyStore{pool: pool}
}

const propertySelectCols = `id, user_id, property_type, purchase_price,
	condition, last_rent_collect, created_at`

func scanPropertyRows(rows pgx.Rows) ([]domain.PropertyAsset, error) {
	var assets []domain.PropertyAsset
	for rows.Next() {
		var a domain.PropertyAsset
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Type, &a.PurchasePrice,
			&a.Condition, &a.LastRentCollect, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Get retrieves a single property asset by id.
func (s *PropertyStore) Get(ctx context.Context, id string) (domain.PropertyAsset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+propertySelectCols+` FROM property_assets WHERE id = $1`, id)

	var a domain.PropertyAsset
	err := row.Scan(
		&a.ID, &a.UserID, &a.Type, &a.PurchasePrice,
		&a.Condition, &a.LastRentCollect, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.PropertyAsset{}, domain.ErrNotFound
		}
		return domain.PropertyAsset{}, fmt.Errorf("postgres: get property %s: %w", id, err)
	}
	return a, nil
}

// ListByUser returns the assets owned by one user.
func (s *PropertyStore) ListByUser(ctx context.Context, userID int64) ([]domain.PropertyAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+propertySelectCols+` FROM property_assets
		 WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list properties by user: %w", err)
	}
	defer rows.Close()

	assets, err := scanPropertyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan properties: %w", err)
	}
	return assets, nil
}

// ListAll returns every owned asset across all users. The economy tick walks
// this list.
func (s *PropertyStore) ListAll(ctx context.Context) ([]domain.PropertyAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+propertySelectCols+` FROM property_assets ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all properties: %w", err)
	}
	defer rows.Close()

	assets, err := scanPropertyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan properties: %w", err)
	}
	return assets, nil
}

// Buy debits the purchase price and inserts the asset in one transaction.
func (s *PropertyStore) Buy(ctx context.Context, asset domain.PropertyAsset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin property buy: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance - $2,
			updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		asset.UserID, asset.PurchasePrice)
	if err != nil {
		return fmt.Errorf("postgres: debit property buy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO property_assets (
			id, user_id, property_type, purchase_price,
			condition, last_rent_collect, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		asset.ID, asset.UserID, asset.Type, asset.PurchasePrice,
		asset.Condition, asset.LastRentCollect, asset.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert property: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit property buy: %w", err)
	}
	return nil
}

// Sell credits the proceeds and deletes the asset in one transaction.
func (s *PropertyStore) Sell(ctx context.Context, id string, userID int64, proceeds float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin property sell: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM property_assets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete property %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance + $2,
			updated_at = NOW()
		WHERE id = $1`,
		userID, proceeds,
	); err != nil {
		return fmt.Errorf("postgres: credit property sell: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit property sell: %w", err)
	}
	return nil
}

// CollectRent credits rent to the owner and advances the asset's rent
// timestamp atomically. The timestamp guard makes the operation idempotent
// when ticks overlap.
func (s *PropertyStore) CollectRent(ctx context.Context, id string, userID int64, rent float64, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin rent collect: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE property_assets SET
			last_rent_collect = $3
		WHERE id = $1 AND user_id = $2 AND last_rent_collect < $3`,
		id, userID, at)
	if err != nil {
		return fmt.Errorf("postgres: advance rent timestamp %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if rent > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE profiles SET
				balance    = balance + $2,
				updated_at = NOW()
			WHERE id = $1`,
			userID, rent,
		); err != nil {
			return fmt.Errorf("postgres: credit rent: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit rent collect: %w", err)
	}
	return nil
}

// ApplyMaintenance sets the damaged condition and debits the maintenance cost.
// The debit is applied even if it takes the balance negative: maintenance is a
// forced event, not a purchase.
func (s *PropertyStore) ApplyMaintenance(ctx context.Context, id string, userID int64, condition int, cost float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin maintenance: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE property_assets SET condition = $3
		WHERE id = $1 AND user_id = $2`,
		id, userID, condition)
	if err != nil {
		return fmt.Errorf("postgres: set maintenance condition %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = GREATEST(balance - $2, 0),
			updated_at = NOW()
		WHERE id = $1`,
		userID, cost,
	); err != nil {
		return fmt.Errorf("postgres: debit maintenance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit maintenance: %w", err)
	}
	return nil
}

// SetCondition writes a new condition value without touching any balance.
// Decay uses this.
func (s *PropertyStore) SetCondition(ctx context.Context, id string, condition int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE property_assets SET condition = $2 WHERE id = $1`, id, condition)
	if err != nil {
		return fmt.Errorf("postgres: set condition %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Repair debits the repair cost and restores the condition to 100. Unlike
// maintenance, a repair is user-invoked and fails on insufficient funds.
func (s *PropertyStore) Repair(ctx context.Context, id string, userID int64, cost float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin repair: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance - $2,
			updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		userID, cost)
	if err != nil {
		return fmt.Errorf("postgres: debit repair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	tag, err = tx.Exec(ctx, `
		UPDATE property_assets SET condition = 100
		WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("postgres: restore condition %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit repair: %w", err)
	}
	return nil
}
