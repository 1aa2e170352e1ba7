package domain

import (
	"context"
	"time"
)

// QuoteCache is the short-lived read-through cache in front of the quote
// store. It exists purely to reduce store load on hot read paths; a miss is
// never an error condition.
type QuoteCache interface {
	SetQuotes(ctx context.Context, quotes QuoteSet, ttl time.Duration) error
	// GetQuotes returns the cached set, or ErrNotFound when the cache is
	// cold or expired.
	GetQuotes(ctx context.Context) (QuoteSet, error)
	Invalidate(ctx context.Context) error
}

// RateLimiter bounds calls against the external price source.
type RateLimiter interface {
	// Allow returns nil when the call may proceed, ErrRateLimited otherwise.
	Allow(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locks so that only one scheduler instance
// runs the periodic tasks at a time.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus is the ephemeral pub/sub plus durable stream transport between
// the engine and its consumers (WebSocket hub, bot process).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error)
}
