package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// RateLimit returns middleware that limits each caller to `limit` requests
// per `window`. Authenticated requests are keyed by player ID, anonymous
// ones by client IP. Limiter infrastructure errors fail open.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:api:"
			if user, ok := UserFrom(r.Context()); ok {
				key += strconv.FormatInt(user.ID, 10)
			} else {
				key += extractClientIP(r)
			}

			err := limiter.Allow(r.Context(), key, limit, window)
			if errors.Is(err, domain.ErrRateLimited) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			// Any other limiter error fails open.
			next.ServeHTTP(w, r)
		})
	}
}

// extractClientIP resolves the client address from proxy headers, falling
// back to the direct remote address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
