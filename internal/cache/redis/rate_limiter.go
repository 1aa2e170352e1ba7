package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// slidingWindowLua atomically trims expired entries from a sorted-set
// window, counts the remainder, and records the new request only when the
// limit has not been reached. KEYS[1] is the window key; ARGV are now
// (microseconds), window length (microseconds), and the limit.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
    return 0
end
redis.call('ZADD', key, now, now)
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return 1
`

// RateLimiter implements domain.RateLimiter with a sliding window backed by
// Redis sorted sets and an atomic Lua script. It bounds calls against the
// external price source so the feed never trips the provider's own limits.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow returns nil when a request for the given key is permitted under the
// sliding window (and counts it), or domain.ErrRateLimited when the limit
// has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	if result != 1 {
		return domain.ErrRateLimited
	}
	return nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
