package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// UpsertQuotes writes the whole quote batch inside one transaction so readers
// never observe a partially refreshed set.
func (s *QuoteStore) UpsertQuotes(ctx context.Context, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin quote upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO market_quotes (symbol, price, change_24h, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			price       = EXCLUDED.price,
			change_24h  = EXCLUDED.change_24h,
			observed_at = EXCLUDED.observed_at`

	for _, q := range quotes {
		if _, err := tx.Exec(ctx, query, q.Symbol, q.Price, q.Change24h, q.ObservedAt); err != nil {
			return fmt.Errorf("postgres: upsert quote %s: %w", q.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit quote upsert: %w", err)
	}
	return nil
}

// LatestQuotes returns the current quote for every tracked coin.
func (s *QuoteStore) LatestQuotes(ctx context.Context) (domain.QuoteSet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, price, change_24h, observed_at FROM market_quotes`)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest quotes: %w", err)
	}
	defer rows.Close()

	set := make(domain.QuoteSet)
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.Symbol, &q.Price, &q.Change24h, &q.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		set[q.Symbol] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan quotes: %w", err)
	}
	return set, nil
}

// AppendHistory appends price history points.
func (s *QuoteStore) AppendHistory(ctx context.Context, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	const query = `
		INSERT INTO price_history (symbol, price, recorded_at)
		VALUES ($1, $2, $3)`

	for _, p := range points {
		if _, err := s.pool.Exec(ctx, query, p.Symbol, p.Price, p.RecordedAt); err != nil {
			return fmt.Errorf("postgres: append history %s: %w", p.Symbol, err)
		}
	}
	return nil
}

// History returns the history series for one coin since the given time, oldest
// first.
func (s *QuoteStore) History(ctx context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, price, recorded_at FROM price_history
		 WHERE symbol = $1 AND recorded_at >= $2
		 ORDER BY recorded_at ASC`, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: history %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Symbol, &p.Price, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan history: %w", err)
	}
	return points, nil
}
