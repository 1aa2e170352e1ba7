// Package feed keeps the market quote cache fresh from the external price
// source, with a static fallback table for prolonged outages.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/platform/cryptocompare"
)

// Signal bus channels fed by the market feed.
const (
	ChannelPrices = "prices"
	StreamPrices  = "prices"

	rateLimitKey = "feed:refresh"
)

// Source fetches live quotes from the external price API.
type Source interface {
	FetchQuotes(ctx context.Context, symbols []string, currency string) ([]cryptocompare.TickerQuote, error)
}

// Feed synchronizes quotes from the external source into the store and cache,
// tracks source health, and serves reads through a short-lived cache.
type Feed struct {
	source  Source
	store   domain.QuoteStore
	cache   domain.QuoteCache
	limiter domain.RateLimiter
	bus     domain.SignalBus
	cfg     config.FeedConfig
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	status domain.FeedStatus
}

// New creates a market feed. The bus and limiter may be nil, in which case
// publishing and rate limiting are skipped.
func New(
	source Source,
	store domain.QuoteStore,
	cache domain.QuoteCache,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	cfg config.FeedConfig,
	logger *slog.Logger,
) *Feed {
	return &Feed{
		source:  source,
		store:   store,
		cache:   cache,
		limiter: limiter,
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "feed")),
		now:     time.Now,
	}
}

// Refresh fetches fresh quotes from the source and writes them to the store
// and cache as one batch. A failed or invalid fetch increments the failure
// streak; once the streak reaches the configured threshold the static
// fallback table is installed so the game keeps running.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.status.TotalAttempts++
	f.mu.Unlock()

	if f.limiter != nil {
		if err := f.limiter.Allow(ctx, rateLimitKey, f.cfg.RateLimitPerMin, time.Minute); err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				f.logger.Warn("refresh skipped, rate limited")
				return err
			}
			// A broken limiter must not stop the feed.
			f.logger.Warn("rate limiter unavailable", slog.Any("error", err))
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout.Duration)
	defer cancel()

	fetched, err := f.source.FetchQuotes(fetchCtx, f.cfg.Symbols, f.cfg.Currency)
	if err != nil {
		return f.recordFailure(ctx, fmt.Errorf("feed: fetch quotes: %w", err))
	}

	now := f.now().UTC()
	quotes := make([]domain.Quote, 0, len(fetched))
	for _, q := range fetched {
		if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
			return f.recordFailure(ctx, fmt.Errorf("feed: invalid price %g for %s", q.Price, q.Symbol))
		}
		quotes = append(quotes, domain.Quote{
			Symbol:     q.Symbol,
			Price:      q.Price,
			Change24h:  q.ChangePct24h,
			ObservedAt: now,
		})
	}

	if err := f.install(ctx, quotes, false); err != nil {
		return err
	}

	f.mu.Lock()
	f.status.LastSuccess = now
	f.status.ConsecutiveFailures = 0
	f.status.Fallback = false
	f.mu.Unlock()

	f.logger.Debug("quotes refreshed", slog.Int("count", len(quotes)))
	return nil
}

// recordFailure bumps the failure streak and, once the threshold is reached,
// installs the fallback table. It always returns the original error.
func (f *Feed) recordFailure(ctx context.Context, cause error) error {
	f.mu.Lock()
	f.status.ConsecutiveFailures++
	streak := f.status.ConsecutiveFailures
	alreadyFallback := f.status.Fallback
	f.mu.Unlock()

	f.logger.Warn("refresh failed",
		slog.Int("consecutive_failures", streak),
		slog.Any("error", cause))

	if streak < f.cfg.FallbackAfter || alreadyFallback {
		return cause
	}

	quotes := fallbackQuotes(f.cfg.Symbols, f.now().UTC())
	if len(quotes) == 0 {
		return cause
	}
	if err := f.install(ctx, quotes, true); err != nil {
		f.logger.Error("fallback install failed", slog.Any("error", err))
		return cause
	}

	f.mu.Lock()
	f.status.Fallback = true
	f.mu.Unlock()

	f.logger.Warn("serving fallback prices", slog.Int("count", len(quotes)))
	return cause
}

// install writes a quote batch to the store and cache and publishes the price
// signal. Fallback batches are not appended to the price history: the series
// records observations, not placeholders.
func (f *Feed) install(ctx context.Context, quotes []domain.Quote, fallback bool) error {
	if err := f.store.UpsertQuotes(ctx, quotes); err != nil {
		return fmt.Errorf("feed: persist quotes: %w", err)
	}

	if !fallback {
		points := make([]domain.PricePoint, 0, len(quotes))
		for _, q := range quotes {
			points = append(points, domain.PricePoint{
				Symbol:     q.Symbol,
				Price:      q.Price,
				RecordedAt: q.ObservedAt,
			})
		}
		if err := f.store.AppendHistory(ctx, points); err != nil {
			// History is an append-only side channel; losing points is
			// preferable to failing the refresh.
			f.logger.Warn("append history failed", slog.Any("error", err))
		}
	}

	set := make(domain.QuoteSet, len(quotes))
	for _, q := range quotes {
		set[q.Symbol] = q
	}
	if f.cache != nil {
		if err := f.cache.SetQuotes(ctx, set, f.cfg.ReadCacheTTL.Duration); err != nil {
			f.logger.Warn("cache write failed", slog.Any("error", err))
		}
	}

	f.publish(ctx, set)
	return nil
}

// publish pushes the refreshed quote set onto the signal bus, best-effort.
func (f *Feed) publish(ctx context.Context, set domain.QuoteSet) {
	if f.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.PriceSignal{
		Quotes:    set,
		UpdatedAt: f.now().UTC(),
	})
	if err != nil {
		f.logger.Error("marshal price signal", slog.Any("error", err))
		return
	}
	if err := f.bus.Publish(ctx, ChannelPrices, payload); err != nil {
		f.logger.Warn("publish price signal failed", slog.Any("error", err))
	}
	if err := f.bus.StreamAppend(ctx, StreamPrices, payload); err != nil {
		f.logger.Warn("append price stream failed", slog.Any("error", err))
	}
}

// Read returns the current quote set. Unless bypass is set it serves from
// the short-lived cache first and only hits the store on a miss. Quotes older
// than the staleness ceiling are still returned, with a warning: stale data
// beats no data.
func (f *Feed) Read(ctx context.Context, bypass bool) (domain.QuoteSet, error) {
	if !bypass && f.cache != nil {
		set, err := f.cache.GetQuotes(ctx)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.Warn("cache read failed", slog.Any("error", err))
		}
	}

	set, err := f.store.LatestQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: read quotes: %w", err)
	}
	if len(set) == 0 {
		return nil, domain.ErrNotFound
	}

	now := f.now()
	for _, q := range set {
		if age := q.Age(now); age > f.cfg.StalenessCeiling.Duration {
			f.logger.Warn("serving stale quote",
				slog.String("symbol", q.Symbol),
				slog.Duration("age", age))
		}
	}

	if f.cache != nil {
		if err := f.cache.SetQuotes(ctx, set, f.cfg.ReadCacheTTL.Duration); err != nil {
			f.logger.Warn("cache write failed", slog.Any("error", err))
		}
	}
	return set, nil
}

// Price returns the current store price for one symbol. It always bypasses
// the read cache: fills and valuations must never execute against a price the
// cache kept alive past a refresh.
func (f *Feed) Price(ctx context.Context, symbol string) (float64, error) {
	set, err := f.Read(ctx, true)
	if err != nil {
		return 0, err
	}
	q, ok := set[symbol]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return q.Price, nil
}

// Invalidate drops the read cache so the next Read hits the store.
func (f *Feed) Invalidate(ctx context.Context) error {
	if f.cache == nil {
		return nil
	}
	return f.cache.Invalidate(ctx)
}

// Status returns a snapshot of the feed's health counters.
func (f *Feed) Status() domain.FeedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
