package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// quoteSetKey holds the whole quote set as one JSON blob. The set is small
// (a handful of coins) and always read together, so a single key with a TTL
// is simpler than per-coin hashes.
const quoteSetKey = "quotes:latest"

// QuoteCache implements domain.QuoteCache as a short-lived read-through
// cache in front of the quote store. Expiry is handled by Redis TTL; a
// missing or expired key is reported as domain.ErrNotFound.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

// SetQuotes stores the quote set with the given TTL.
func (qc *QuoteCache) SetQuotes(ctx context.Context, quotes domain.QuoteSet, ttl time.Duration) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("redis: marshal quote set: %w", err)
	}
	if err := qc.rdb.Set(ctx, quoteSetKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quote set: %w", err)
	}
	return nil
}

// GetQuotes returns the cached quote set, or domain.ErrNotFound when the
// cache is cold or the TTL has expired.
func (qc *QuoteCache) GetQuotes(ctx context.Context) (domain.QuoteSet, error) {
	data, err := qc.rdb.Get(ctx, quoteSetKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get quote set: %w", err)
	}

	var quotes domain.QuoteSet
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("redis: unmarshal quote set: %w", err)
	}
	if len(quotes) == 0 {
		return nil, domain.ErrNotFound
	}
	return quotes, nil
}

// Invalidate drops the cached quote set so the next read hits the store.
func (qc *QuoteCache) Invalidate(ctx context.Context) error {
	if err := qc.rdb.Del(ctx, quoteSetKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate quote set: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
