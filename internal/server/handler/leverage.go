package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/service"
)

// LeverageHandler serves leveraged trading endpoints.
type LeverageHandler struct {
	leverage *service.LeverageService
	logger   *slog.Logger
}

// NewLeverageHandler creates a LeverageHandler.
func NewLeverageHandler(leverage *service.LeverageService, logger *slog.Logger) *LeverageHandler {
	return &LeverageHandler{leverage: leverage, logger: logger}
}

type openRequest struct {
	Symbol   string  `json:"symbol"`
	Margin   float64 `json:"margin"`
	Leverage int     `json:"leverage"`
}

type closeRequest struct {
	Symbol string `json:"symbol"`
}

type leveragedPositionResponse struct {
	Symbol           string    `json:"symbol"`
	Amount           float64   `json:"amount"`
	EntryPrice       float64   `json:"entry_price"`
	Leverage         int       `json:"leverage"`
	LiquidationPrice float64   `json:"liquidation_price"`
	CurrentPrice     float64   `json:"current_price"`
	RiskLevel        string    `json:"risk_level"`
	PnLPercent       float64   `json:"pnl_percent"`
	OpenedAt         time.Time `json:"opened_at"`
}

// Open opens a leveraged long.
// POST /api/leverage/open
func (h *LeverageHandler) Open(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req openRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pos, err := h.leverage.Open(r.Context(), uid, req.Symbol, req.Margin, req.Leverage)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidLeverage):
			writeError(w, http.StatusBadRequest, "leverage not offered")
		case errors.Is(err, domain.ErrDuplicateLeverage):
			writeError(w, http.StatusConflict, "position already open for this coin")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown coin")
		default:
			h.logger.ErrorContext(r.Context(), "handler: open leverage failed",
				slog.String("symbol", req.Symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to open position")
		}
		return
	}

	writeJSON(w, http.StatusCreated, leveragedPositionResponse{
		Symbol:           pos.Symbol,
		Amount:           pos.Amount,
		EntryPrice:       pos.EntryPrice,
		Leverage:         pos.Leverage,
		LiquidationPrice: pos.LiquidationPrice,
		OpenedAt:         pos.OpenedAt,
	})
}

// Close closes the player's position in one coin and reports the payout.
// POST /api/leverage/close
func (h *LeverageHandler) Close(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req closeRequest
	if err := decodeJSON(r, &req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payout, err := h.leverage.Close(r.Context(), uid, req.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no open position for this coin")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: close leverage failed",
			slog.String("symbol", req.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to close position")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"payout": payout})
}

// Positions lists the player's open leveraged positions with a live risk
// snapshot.
// GET /api/leverage/positions
func (h *LeverageHandler) Positions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	events, err := h.leverage.Positions(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leverage positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	out := make([]leveragedPositionResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, leveragedPositionResponse{
			Symbol:           ev.Position.Symbol,
			Amount:           ev.Position.Amount,
			EntryPrice:       ev.Position.EntryPrice,
			Leverage:         ev.Position.Leverage,
			LiquidationPrice: ev.Position.LiquidationPrice,
			CurrentPrice:     ev.CurrentPrice,
			RiskLevel:        string(ev.Level),
			PnLPercent:       ev.PnLPercent,
			OpenedAt:         ev.Position.OpenedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}
