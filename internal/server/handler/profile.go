package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/server/middleware"
	"github.com/valuetycoon/tycoond/internal/service"
)

// ProfileHandler serves player profile, leaderboard, ledger, and achievement
// endpoints.
type ProfileHandler struct {
	profiles     *service.ProfileService
	achievements *service.AchievementService
	logger       *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, achievements *service.AchievementService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles:     profiles,
		achievements: achievements,
		logger:       logger,
	}
}

type profileResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Balance       float64   `json:"balance"`
	TradingVolume float64   `json:"trading_volume"`
	CreatedAt     time.Time `json:"created_at"`
}

func toProfileResponse(p domain.Profile) profileResponse {
	return profileResponse{
		ID:            p.ID,
		Username:      p.Username,
		Balance:       p.Balance,
		TradingVolume: p.TradingVolume,
		CreatedAt:     p.CreatedAt,
	}
}

// Login upserts the authenticated player's profile and returns it. First
// contact creates the account with the starting balance.
// POST /api/auth/login
func (h *ProfileHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	username := user.Username
	if username == "" {
		username = user.FirstName
	}

	profile, err := h.profiles.Login(r.Context(), user.ID, username)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: login failed",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// Me returns the authenticated player's profile.
// GET /api/profile
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	profile, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusNotFound, "profile not found, log in first")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// Leaderboard returns the top players by balance.
// GET /api/leaderboard
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := h.profiles.Leaderboard(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	out := make([]profileResponse, 0, len(top))
	for _, p := range top {
		out = append(out, toProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": out})
}

type ledgerEntryResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// History returns a page of the player's transaction ledger, newest first.
// GET /api/profile/history?limit=50&offset=0
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	entries, err := h.profiles.History(r.Context(), uid, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: ledger history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:          e.ID,
			Type:        string(e.Type),
			Amount:      e.Amount,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// Achievements returns every achievement definition plus the player's
// unlocked set.
// GET /api/profile/achievements
func (h *ProfileHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	unlocked, err := h.achievements.Unlocked(r.Context(), uid)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: achievements failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}
	unlockedSet := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		unlockedSet[id] = true
	}

	type achievementEntry struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Reward      float64 `json:"reward"`
		Unlocked    bool    `json:"unlocked"`
	}
	defs := h.achievements.Definitions()
	out := make([]achievementEntry, 0, len(defs))
	for _, def := range defs {
		out = append(out, achievementEntry{
			ID:          def.ID,
			Title:       def.Title,
			Description: def.Description,
			Reward:      def.Reward,
			Unlocked:    unlockedSet[def.ID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": out})
}
