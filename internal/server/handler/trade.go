package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/service"
	"github.com/valuetycoon/tycoond/internal/trade"
)

// TradeHandler serves spot trading endpoints.
type TradeHandler struct {
	trades *service.TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades *service.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

type tradeRequest struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

type receiptResponse struct {
	Subtotal float64 `json:"subtotal"`
	Fee      float64 `json:"fee"`
	Total    float64 `json:"total"`
}

type positionResponse struct {
	Symbol      string    `json:"symbol"`
	Amount      float64   `json:"amount"`
	AvgBuyPrice float64   `json:"avg_buy_price"`
	OpenedAt    time.Time `json:"opened_at"`
}

// Info returns the pre-trade quote for one coin.
// GET /api/trade/info/{symbol}
func (h *TradeHandler) Info(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	symbol := r.PathValue("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	info, err := h.trades.Info(r.Context(), uid, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown coin")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: trade info failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build trade info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Buy executes a spot purchase.
// POST /api/trade/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "buy", h.trades.Buy)
}

// Sell executes a spot sale.
// POST /api/trade/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, "sell", h.trades.Sell)
}

// Holdings lists the player's spot positions.
// GET /api/trade/positions
func (h *TradeHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	positions, err := h.trades.Holdings(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: holdings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionResponse{
			Symbol:      p.Symbol,
			Amount:      p.Amount,
			AvgBuyPrice: p.AvgBuyPrice,
			OpenedAt:    p.OpenedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

type tradeFunc func(ctx context.Context, userID int64, symbol string, amount float64) (trade.Receipt, error)

func (h *TradeHandler) execute(w http.ResponseWriter, r *http.Request, op string, run tradeFunc) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req tradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "symbol and a positive amount are required")
		return
	}

	receipt, err := run(r.Context(), uid, req.Symbol, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown coin or no position")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, domain.ErrInsufficientHoldings):
			writeError(w, http.StatusUnprocessableEntity, "insufficient holdings")
		default:
			h.logger.ErrorContext(r.Context(), "handler: trade failed",
				slog.String("op", op),
				slog.String("symbol", req.Symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "trade failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		Subtotal: receipt.Subtotal,
		Fee:      receipt.Fee,
		Total:    receipt.Total,
	})
}
