package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/platform/cryptocompare"
	"github.com/valuetycoon/tycoond/internal/store/memory"
)

type fakeSource struct {
	quotes []cryptocompare.TickerQuote
	err    error
	calls  int
}

func (f *fakeSource) FetchQuotes(_ context.Context, _ []string, _ string) ([]cryptocompare.TickerQuote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

// pinnedCache is a QuoteCache stand-in whose contents only change through the
// interface, so tests can park an outdated set in it.
type pinnedCache struct {
	set domain.QuoteSet
}

func (c *pinnedCache) SetQuotes(_ context.Context, set domain.QuoteSet, _ time.Duration) error {
	c.set = set
	return nil
}

func (c *pinnedCache) GetQuotes(_ context.Context) (domain.QuoteSet, error) {
	if c.set == nil {
		return nil, domain.ErrNotFound
	}
	return c.set, nil
}

func (c *pinnedCache) Invalidate(_ context.Context) error {
	c.set = nil
	return nil
}

func testFeedConfig() config.FeedConfig {
	cfg := config.Defaults().Feed
	cfg.FallbackAfter = 3
	return cfg
}

func newTestFeed(source Source) (*Feed, *memory.QuoteStore) {
	store := memory.NewQuoteStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(source, store, nil, nil, nil, testFeedConfig(), logger), store
}

func TestRefreshWritesQuotesAndHistory(t *testing.T) {
	source := &fakeSource{quotes: []cryptocompare.TickerQuote{
		{Symbol: "bitcoin", Price: 60_000, ChangePct24h: 1.5},
		{Symbol: "ethereum", Price: 2_200, ChangePct24h: -0.3},
	}}
	f, store := newTestFeed(source)

	require.NoError(t, f.Refresh(context.Background()))

	set, err := store.LatestQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, 60_000.0, set["bitcoin"].Price)
	assert.Equal(t, -0.3, set["ethereum"].Change24h)

	points, err := store.History(context.Background(), "bitcoin", time.Time{})
	require.NoError(t, err)
	assert.Len(t, points, 1)

	status := f.Status()
	assert.Equal(t, int64(1), status.TotalAttempts)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.False(t, status.Fallback)
}

func TestRefreshRejectsInvalidPrice(t *testing.T) {
	source := &fakeSource{quotes: []cryptocompare.TickerQuote{
		{Symbol: "bitcoin", Price: 0},
	}}
	f, store := newTestFeed(source)

	err := f.Refresh(context.Background())
	require.Error(t, err)

	set, err := store.LatestQuotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set, "invalid batch must not reach the store")
	assert.Equal(t, 1, f.Status().ConsecutiveFailures)
}

func TestRefreshFallbackAfterThreshold(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	f, store := newTestFeed(source)
	ctx := context.Background()

	// Two failures: no fallback yet.
	require.Error(t, f.Refresh(ctx))
	require.Error(t, f.Refresh(ctx))
	set, err := store.LatestQuotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.False(t, f.Status().Fallback)

	// Third failure crosses the threshold and installs the static table.
	require.Error(t, f.Refresh(ctx))
	status := f.Status()
	assert.True(t, status.Fallback)
	assert.Equal(t, 3, status.ConsecutiveFailures)

	set, err = store.LatestQuotes(ctx)
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.Equal(t, 61_500.0, set["bitcoin"].Price)
	assert.Equal(t, 41.20, set["litecoin"].Price)
	assert.Equal(t, 2_150.0, set["ethereum"].Price)

	// Fallback prices never enter the history series.
	points, err := store.History(ctx, "bitcoin", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestRefreshRecoveryClearsFallback(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	f, _ := newTestFeed(source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, f.Refresh(ctx))
	}
	require.True(t, f.Status().Fallback)

	source.err = nil
	source.quotes = []cryptocompare.TickerQuote{{Symbol: "bitcoin", Price: 62_000}}
	require.NoError(t, f.Refresh(ctx))

	status := f.Status()
	assert.False(t, status.Fallback)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.False(t, status.LastSuccess.IsZero())
}

func TestReadReturnsStoreQuotes(t *testing.T) {
	source := &fakeSource{quotes: []cryptocompare.TickerQuote{
		{Symbol: "bitcoin", Price: 59_000},
	}}
	f, _ := newTestFeed(source)
	ctx := context.Background()

	require.NoError(t, f.Refresh(ctx))

	set, err := f.Read(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 59_000.0, set["bitcoin"].Price)

	price, err := f.Price(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 59_000.0, price)

	_, err = f.Price(ctx, "dogecoin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshRejectsNonFinitePrice(t *testing.T) {
	for name, price := range map[string]float64{
		"nan":          math.NaN(),
		"positive inf": math.Inf(1),
		"negative inf": math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			source := &fakeSource{quotes: []cryptocompare.TickerQuote{
				{Symbol: "bitcoin", Price: price},
			}}
			f, store := newTestFeed(source)

			require.Error(t, f.Refresh(context.Background()))

			set, err := store.LatestQuotes(context.Background())
			require.NoError(t, err)
			assert.Empty(t, set)
		})
	}
}

func TestPriceBypassesCachedQuotes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuoteStore()
	require.NoError(t, store.UpsertQuotes(ctx, []domain.Quote{
		{Symbol: "bitcoin", Price: 61_000, ObservedAt: time.Now().UTC()},
	}))

	// The cache still holds the batch from before the last refresh.
	cache := &pinnedCache{set: domain.QuoteSet{
		"bitcoin": {Symbol: "bitcoin", Price: 50_000, ObservedAt: time.Now().UTC()},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := New(&fakeSource{}, store, cache, nil, nil, testFeedConfig(), logger)

	price, err := f.Price(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 61_000.0, price, "fills must price off the store, not the cache")

	// The bypassing read re-primes the cache with the store batch.
	cached, err := cache.GetQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 61_000.0, cached["bitcoin"].Price)
}

func TestReadEmptyStoreIsNotFound(t *testing.T) {
	f, _ := newTestFeed(&fakeSource{})
	_, err := f.Read(context.Background(), true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
