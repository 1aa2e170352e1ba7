package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/feed"
)

// defaultHistoryWindow is how far back the history endpoint reaches when the
// client does not say.
const defaultHistoryWindow = 24 * time.Hour

// MarketHandler serves market quote and price history endpoints.
type MarketHandler struct {
	market *feed.Feed
	quotes domain.QuoteStore
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market *feed.Feed, quotes domain.QuoteStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		market: market,
		quotes: quotes,
		logger: logger,
	}
}

type quoteResponse struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Change24h  float64   `json:"change_24h"`
	ObservedAt time.Time `json:"observed_at"`
}

// ListQuotes returns the current prices for every tracked coin. The read
// bypasses the quote cache so the board always shows the latest stored batch.
// GET /api/market/quotes
func (h *MarketHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	set, err := h.market.Read(r.Context(), true)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusServiceUnavailable, "no market data yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list quotes failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read quotes")
		return
	}

	quotes := make([]quoteResponse, 0, len(set))
	for _, q := range set {
		quotes = append(quotes, quoteResponse{
			Symbol:     q.Symbol,
			Price:      q.Price,
			Change24h:  q.Change24h,
			ObservedAt: q.ObservedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

// History returns the recorded price series for one coin.
// GET /api/market/history/{symbol}?hours=24
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	window := defaultHistoryWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		window = time.Duration(n) * time.Hour
	}

	points, err := h.quotes.History(r.Context(), symbol, time.Now().UTC().Add(-window))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: price history failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read price history")
		return
	}

	series := make([]historyPoint, 0, len(points))
	for _, p := range points {
		series = append(series, historyPoint{Price: p.Price, RecordedAt: p.RecordedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"points": series,
	})
}

type historyPoint struct {
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}
