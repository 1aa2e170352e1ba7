package feed

import (
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// fallbackQuote is one entry of the static emergency price table served when
// the external source has failed repeatedly. Values are deliberately
// conservative snapshots, not live data.
type fallbackQuote struct {
	price     float64
	change24h float64
}

var fallbackTable = map[string]fallbackQuote{
	"bitcoin":  {price: 61_500, change24h: 0.5},
	"litecoin": {price: 41.20, change24h: -0.2},
	"ethereum": {price: 2_150, change24h: 1.2},
}

// fallbackQuotes builds a quote batch from the static table for the given
// symbols. Symbols without a table entry are skipped.
func fallbackQuotes(symbols []string, now time.Time) []domain.Quote {
	quotes := make([]domain.Quote, 0, len(symbols))
	for _, s := range symbols {
		fb, ok := fallbackTable[s]
		if !ok {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Symbol:     s,
			Price:      fb.price,
			Change24h:  fb.change24h,
			ObservedAt: now,
		})
	}
	return quotes
}
