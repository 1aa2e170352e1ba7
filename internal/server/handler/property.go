package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/service"
)

// PropertyHandler serves property market endpoints.
type PropertyHandler struct {
	properties *service.PropertyService
	logger     *slog.Logger
}

// NewPropertyHandler creates a PropertyHandler.
func NewPropertyHandler(properties *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{properties: properties, logger: logger}
}

type buyPropertyRequest struct {
	TypeID string `json:"type_id"`
}

type assetResponse struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	PurchasePrice   float64   `json:"purchase_price"`
	ResaleValue     float64   `json:"resale_value"`
	Condition       int       `json:"condition"`
	LastRentCollect time.Time `json:"last_rent_collect"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAssetResponse(a domain.PropertyAsset) assetResponse {
	return assetResponse{
		ID:              a.ID,
		Type:            a.Type,
		PurchasePrice:   a.PurchasePrice,
		ResaleValue:     a.ResaleValue(),
		Condition:       a.Condition,
		LastRentCollect: a.LastRentCollect,
		CreatedAt:       a.CreatedAt,
	}
}

// Catalog lists the purchasable property types together with the market
// unlock state.
// GET /api/property/catalog
func (h *PropertyHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	unlocked, err := h.properties.Unlocked(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: property unlock check failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}
	entries, err := h.properties.Catalog(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: property catalog failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	type catalogEntry struct {
		ID              string  `json:"id"`
		Name            string  `json:"name"`
		Price           float64 `json:"price"`
		BaseRent        float64 `json:"base_rent"`
		MaintenanceCost float64 `json:"maintenance_cost"`
		Tier            int     `json:"tier"`
		Owned           bool    `json:"owned"`
	}
	out := make([]catalogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogEntry{
			ID:              e.Type.ID,
			Name:            e.Type.Name,
			Price:           e.Type.Price,
			BaseRent:        e.Type.BaseRent,
			MaintenanceCost: e.Type.MaintenanceCost,
			Tier:            e.Type.Tier,
			Owned:           e.Owned,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unlocked": unlocked,
		"catalog":  out,
	})
}

// Owned lists the player's properties.
// GET /api/property/owned
func (h *PropertyHandler) Owned(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	assets, err := h.properties.Owned(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: owned properties failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": out})
}

// Buy purchases a property from the catalog.
// POST /api/property/buy
func (h *PropertyHandler) Buy(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req buyPropertyRequest
	if err := decodeJSON(r, &req); err != nil || req.TypeID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.properties.Buy(r.Context(), uid, req.TypeID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPropertyLocked):
			writeError(w, http.StatusForbidden, "property market locked, trade more volume first")
		case errors.Is(err, domain.ErrAlreadyOwned):
			writeError(w, http.StatusConflict, "already own a property of this type")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown property type")
		default:
			h.logger.ErrorContext(r.Context(), "handler: buy property failed",
				slog.String("type_id", req.TypeID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to buy property")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}

// Sell returns a property to the market.
// DELETE /api/property/{id}
func (h *PropertyHandler) Sell(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing property id")
		return
	}

	proceeds, err := h.properties.Sell(r.Context(), uid, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "property not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: sell property failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to sell property")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"proceeds": proceeds})
}

// Repair restores a property to full condition.
// POST /api/property/{id}/repair
func (h *PropertyHandler) Repair(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing property id")
		return
	}

	cost, err := h.properties.Repair(r.Context(), uid, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "property not found")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		default:
			h.logger.ErrorContext(r.Context(), "handler: repair property failed",
				slog.String("asset_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to repair property")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"cost": cost})
}
