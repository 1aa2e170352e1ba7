package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// LeverageStore implements domain.LeverageStore using PostgreSQL.
type LeverageStore struct {
	pool *pgxpool.Pool
}

// NewLeverageStore creates a new LeverageStore backed by the given connection
// pool.
func NewLeverageStore(pool *pgxpool.Pool) *LeverageStore {
	return &LeverageStore{pool: pool}
}

const leverageSelectCols = `id, user_id, symbol, amount, entry_price, leverage,
	liquidation_price, opened_at`

func scanLeverageRows(rows pgx.Rows) ([]domain.LeveragedPosition, error) {
	var positions []domain.LeveragedPosition
	for rows.Next() {
		var p domain.LeveragedPosition
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Symbol, &p.Amount,
			&p.EntryPrice, &p.Leverage, &p.LiquidationPrice, &p.OpenedAt,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Get retrieves the open leveraged position for one (user, symbol) pair.
func (s *LeverageStore) Get(ctx context.Context, userID int64, symbol string) (domain.LeveragedPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leverageSelectCols+` FROM leverage_positions
		 WHERE user_id = $1 AND symbol = $2`, userID, symbol)

	var p domain.LeveragedPosition
	err := row.Scan(
		&p.ID, &p.UserID, &p.Symbol, &p.Amount,
		&p.EntryPrice, &p.Leverage, &p.LiquidationPrice, &p.OpenedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.LeveragedPosition{}, domain.ErrNotFound
		}
		return domain.LeveragedPosition{}, fmt.Errorf("postgres: get leverage position %d/%s: %w", userID, symbol, err)
	}
	return p, nil
}

// ListOpen returns every open leveraged position across all users.
func (s *LeverageStore) ListOpen(ctx context.Context) ([]domain.LeveragedPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leverageSelectCols+` FROM leverage_positions
		 ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open leverage positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanLeverageRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan leverage positions: %w", err)
	}
	return positions, nil
}

// Open debits totalCost (margin plus fee) and inserts the position in one
// transaction. The (user_id, symbol) unique constraint enforces the
// one-position-per-coin rule.
func (s *LeverageStore) Open(ctx context.Context, pos domain.LeveragedPosition, totalCost float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin leverage open: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance - $2,
			updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		pos.UserID, totalCost)
	if err != nil {
		return fmt.Errorf("postgres: debit leverage open: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO leverage_positions (
			id, user_id, symbol, amount, entry_price, leverage,
			liquidation_price, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pos.ID, pos.UserID, pos.Symbol, pos.Amount,
		pos.EntryPrice, pos.Leverage, pos.LiquidationPrice, pos.OpenedAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateLeverage
		}
		return fmt.Errorf("postgres: insert leverage position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit leverage open: %w", err)
	}
	return nil
}

// Close credits payout to the owner and deletes the position.
func (s *LeverageStore) Close(ctx context.Context, id string, userID int64, payout float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin leverage close: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM leverage_positions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("postgres: delete leverage position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if payout > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE profiles SET
				balance    = balance + $2,
				updated_at = NOW()
			WHERE id = $1`,
			userID, payout,
		); err != nil {
			return fmt.Errorf("postgres: credit leverage close: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit leverage close: %w", err)
	}
	return nil
}

// Liquidate deletes the position without any credit. The margin was debited
// at open time and is now fully lost.
func (s *LeverageStore) Liquidate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM leverage_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: liquidate position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
