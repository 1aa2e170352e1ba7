package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/feed"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	market *feed.Feed
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(market *feed.Feed, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{market: market, logger: logger}
}

// HealthCheck reports liveness plus the state of the market feed.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.market != nil {
		status := h.market.Status()
		body["feed"] = map[string]any{
			"last_success":         status.LastSuccess.UTC().Format(time.RFC3339),
			"consecutive_failures": status.ConsecutiveFailures,
			"fallback":             status.Fallback,
		}
	}
	writeJSON(w, http.StatusOK, body)
}
