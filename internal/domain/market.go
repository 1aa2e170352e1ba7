// Package domain defines the core types, store interfaces, and sentinel
// errors shared by every layer of the economy engine. It has no dependencies
// on concrete infrastructure so that services and engines can be tested
// against in-memory implementations.
package domain

import "time"

// Quote is a single cached spot quote for one coin.
type Quote struct {
	Symbol     string    // canonical lower-case coin id, e.g. "bitcoin"
	Price      float64   // spot price in EUR, always > 0
	Change24h  float64   // 24h change in percent
	ObservedAt time.Time // when the quote was fetched from the source
}

// Age returns how long ago the quote was observed.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// QuoteSet maps coin id to its latest quote.
type QuoteSet map[string]Quote

// PricePoint is one row of the price history series kept per coin.
type PricePoint struct {
	Symbol     string
	Price      float64
	RecordedAt time.Time
}

// FeedStatus is the observability surface of the market feed. It is
// transient state, reconstructible from observed behaviour, and is never
// persisted.
type FeedStatus struct {
	LastSuccess         time.Time
	TotalAttempts       int64
	ConsecutiveFailures int
	Fallback            bool // true while the static fallback table is being served
}
