package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool            *pgxpool.Pool
	startingBalance float64
}

// NewProfileStore creates a new ProfileStore. New accounts are seeded with
// startingBalance on first upsert.
func NewProfileStore(pool *pgxpool.Pool, startingBalance float64) *ProfileStore {
	return &ProfileStore{pool: pool, startingBalance: startingBalance}
}

const profileSelectCols = `id, username, balance, trading_volume, created_at`

func scanProfileRow(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Balance, &p.TradingVolume, &p.CreatedAt)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// Upsert creates the profile on first contact and refreshes the username on
// subsequent calls. It returns the stored profile either way.
func (s *ProfileStore) Upsert(ctx context.Context, id int64, username string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			username   = EXCLUDED.username,
			updated_at = NOW()
		RETURNING `+profileSelectCols,
		id, username, s.startingBalance)

	p, err := scanProfileRow(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("postgres: upsert profile %d: %w", id, err)
	}
	return p, nil
}

// Get retrieves a profile by user id.
func (s *ProfileStore) Get(ctx context.Context, id int64) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileSelectCols+` FROM profiles WHERE id = $1`, id)

	p, err := scanProfileRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %d: %w", id, err)
	}
	return p, nil
}

// AdjustBalance atomically applies a signed delta to the user's balance. A
// debit that would take the balance negative fails with ErrInsufficientFunds.
func (s *ProfileStore) AdjustBalance(ctx context.Context, id int64, delta float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles SET
			balance    = balance + $2,
			updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0`,
		id, delta)
	if err != nil {
		return fmt.Errorf("postgres: adjust balance %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing profile from an overdraft.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: adjust balance %d: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

// TopByBalance returns the richest profiles, highest balance first.
func (s *ProfileStore) TopByBalance(ctx context.Context, limit int) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileSelectCols+` FROM profiles
		 ORDER BY balance DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top by balance: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.Balance, &p.TradingVolume, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan profiles: %w", err)
	}
	return profiles, nil
}

// ListIDs returns up to limit user ids, oldest accounts first.
func (s *ProfileStore) ListIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM profiles ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list profile ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
