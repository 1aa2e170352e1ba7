package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/valuetycoon/tycoond/internal/crypto"
	"github.com/valuetycoon/tycoond/internal/domain"
)

// stubLimiter returns a fixed response and records the last key it saw.
type stubLimiter struct {
	err     error
	lastKey string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) error {
	s.lastKey = key
	return s.err
}

func serveLimited(t *testing.T, limiter domain.RateLimiter, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler := RateLimit(limiter, 10, time.Minute)(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	handler.ServeHTTP(rec, r)
	return rec
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)

	rec := serveLimited(t, &stubLimiter{}, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitRejectsWith429(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)

	rec := serveLimited(t, &stubLimiter{err: domain.ErrRateLimited}, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)

	rec := serveLimited(t, &stubLimiter{err: errors.New("redis down")}, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitKeysByPlayerThenIP(t *testing.T) {
	limiter := &stubLimiter{}

	r := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	r = r.WithContext(withUser(r.Context(), crypto.InitDataUser{ID: 42, Username: "tester"}))
	serveLimited(t, limiter, r)
	assert.Equal(t, "ratelimit:api:42", limiter.lastKey)

	anon := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	anon.RemoteAddr = "203.0.113.9:4455"
	serveLimited(t, limiter, anon)
	assert.Equal(t, "ratelimit:api:203.0.113.9", limiter.lastKey)
}
