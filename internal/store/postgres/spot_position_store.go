package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// SpotPositionStore implements domain.SpotPositionStore using PostgreSQL.
// Buys and sells fuse the balance mutation with the position write in one
// transaction.
type SpotPositionStore struct {
	pool *pgxpool.Pool
}

// NewSpotPositionStore creates a new SpotPositionStore backed by the given
// connection pool.
func NewSpotPositionStore(pool *pgxpool.Pool) *SpotPositionStore {
	return &SpotPositionStore{pool: pool}
}

const spotSelectCols = `id, user_id, symbol, amount, avg_buy_price, opened_at`

// Get retrieves the holding for one (user, symbol) pair.
func (s *SpotPositionStore) Get(ctx context.Context, userID int64, symbol string) (domain.SpotPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+spotSelectCols+` FROM spot_positions
		 WHERE user_id = $1 AND symbol = $2`, userID, symbol)

	var p domain.SpotPosition
	err := row.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Amount, &p.AvgBuyPrice, &p.OpenedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SpotPosition{}, domain.ErrNotFound
		}
		return domain.SpotPosition{}, fmt.Errorf("postgres: get spot position %d/%s: %w", userID, symbol, err)
	}
	return p, nil
}

// ListByUser returns all holdings of one user.
func (s *SpotPositionStore) ListByUser(ctx context.Context, userID int64) ([]domain.SpotPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+spotSelectCols+` FROM spot_positions
		 WHERE user_id = $1 ORDER BY symbol ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list spot positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.SpotPosition
	for rows.Next() {
		var p domain.SpotPosition
		if err := rows.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Amount, &p.AvgBuyPrice, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan spot position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ApplyBuy debits totalCost from the owner and upserts the merged position
// in the same transaction. An overdraft rolls everything back with
// ErrInsufficientFunds.
func (s *SpotPositionStore) ApplyBuy(ctx context.Context, pos domain.SpotPosition, totalCost float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin spot buy: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance - $2,
			updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		pos.UserID, totalCost)
	if err != nil {
		return fmt.Errorf("postgres: debit spot buy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO spot_positions (id, user_id, symbol, amount, avg_buy_price, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			amount        = EXCLUDED.amount,
			avg_buy_price = EXCLUDED.avg_buy_price,
			updated_at    = NOW()`,
		pos.ID, pos.UserID, pos.Symbol, pos.Amount, pos.AvgBuyPrice, pos.OpenedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert spot position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit spot buy: %w", err)
	}
	return nil
}

// ApplySell credits payout, accrues eligible trading volume, and writes the
// remaining amount. A remaining amount below the dust epsilon deletes the
// position row.
func (s *SpotPositionStore) ApplySell(ctx context.Context, pos domain.SpotPosition, remaining, payout, volume float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin spot sell: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance        = balance + $2,
			trading_volume = trading_volume + $3,
			updated_at     = NOW()
		WHERE id = $1`,
		pos.UserID, payout, volume)
	if err != nil {
		return fmt.Errorf("postgres: credit spot sell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if remaining < domain.DustEpsilon {
		if _, err := tx.Exec(ctx,
			`DELETE FROM spot_positions WHERE user_id = $1 AND symbol = $2`,
			pos.UserID, pos.Symbol,
		); err != nil {
			return fmt.Errorf("postgres: delete dust position: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE spot_positions SET
				amount     = $3,
				updated_at = NOW()
			WHERE user_id = $1 AND symbol = $2`,
			pos.UserID, pos.Symbol, remaining,
		); err != nil {
			return fmt.Errorf("postgres: update spot position: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit spot sell: %w", err)
	}
	return nil
}
