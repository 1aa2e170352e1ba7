// Package service implements the player-facing use cases on top of the
// engines and stores: trading, property management, profiles, achievements,
// and season rewards.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// Achievement ids.
const (
	AchFirstTrade    = "first_trade"
	AchHighRoller    = "high_roller"
	AchPropertyMogul = "property_mogul"
	AchMillionaire   = "millionaire"
	AchPortfolioKing = "portfolio_king"
)

// millionaireBalance is the balance that unlocks the millionaire achievement.
const millionaireBalance = 1_000_000

// portfolioKingCount is how many properties unlock the portfolio king
// achievement.
const portfolioKingCount = 5

// achievementDefs is the fixed set of unlockables and their cash rewards.
var achievementDefs = map[string]domain.Achievement{
	AchFirstTrade:    {ID: AchFirstTrade, Title: "First Trade", Description: "Complete your first crypto trade.", Reward: 100},
	AchHighRoller:    {ID: AchHighRoller, Title: "High Roller", Description: "Open your first leveraged position.", Reward: 2_000},
	AchPropertyMogul: {ID: AchPropertyMogul, Title: "Property Mogul", Description: "Buy your first property.", Reward: 5_000},
	AchMillionaire:   {ID: AchMillionaire, Title: "Millionaire", Description: "Hold a cash balance of 1,000,000.", Reward: 10_000},
	AchPortfolioKing: {ID: AchPortfolioKing, Title: "Portfolio King", Description: fmt.Sprintf("Own %d properties at once.", portfolioKingCount), Reward: 25_000},
}

// AchievementService awards one-time unlocks and pays their rewards. Award
// checks are cheap and idempotent, so callers invoke them after any action
// that might qualify.
type AchievementService struct {
	achievements domain.AchievementStore
	profiles     domain.ProfileStore
	properties   domain.PropertyStore
	ledger       domain.LedgerStore
	notifier     domain.Notifier
	logger       *slog.Logger
	now          func() time.Time
}

// NewAchievementService creates an AchievementService. The notifier may be
// nil.
func NewAchievementService(
	achievements domain.AchievementStore,
	profiles domain.ProfileStore,
	properties domain.PropertyStore,
	ledger domain.LedgerStore,
	notifier domain.Notifier,
	logger *slog.Logger,
) *AchievementService {
	return &AchievementService{
		achievements: achievements,
		profiles:     profiles,
		properties:   properties,
		ledger:       ledger,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "achievements")),
		now:          time.Now,
	}
}

// Definitions returns every achievement definition.
func (s *AchievementService) Definitions() []domain.Achievement {
	out := make([]domain.Achievement, 0, len(achievementDefs))
	for _, id := range []string{AchFirstTrade, AchHighRoller, AchPropertyMogul, AchMillionaire, AchPortfolioKing} {
		out = append(out, achievementDefs[id])
	}
	return out
}

// Unlocked returns the ids the user has already earned.
func (s *AchievementService) Unlocked(ctx context.Context, userID int64) ([]string, error) {
	ids, err := s.achievements.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("achievement_service: list for %d: %w", userID, err)
	}
	return ids, nil
}

// Award grants one achievement if the user does not have it yet, credits the
// reward, and notifies. It returns true when newly granted. Award failures
// are advisory to the caller: the action that triggered the check already
// succeeded.
func (s *AchievementService) Award(ctx context.Context, userID int64, achievementID string) (bool, error) {
	def, ok := achievementDefs[achievementID]
	if !ok {
		return false, fmt.Errorf("achievement_service: unknown achievement %q", achievementID)
	}

	now := s.now().UTC()
	granted, err := s.achievements.Award(ctx, userID, achievementID, now)
	if err != nil {
		return false, fmt.Errorf("achievement_service: award %s: %w", achievementID, err)
	}
	if !granted {
		return false, nil
	}

	if err := s.profiles.AdjustBalance(ctx, userID, def.Reward); err != nil {
		s.logger.Warn("reward credit failed",
			slog.Int64("user_id", userID),
			slog.String("achievement", achievementID),
			slog.Any("error", err))
	}
	if err := s.ledger.Append(ctx, domain.LedgerEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        domain.EntryAchievement,
		Amount:      def.Reward,
		Description: fmt.Sprintf("achievement unlocked: %s", def.Title),
		CreatedAt:   now,
	}); err != nil {
		s.logger.Warn("ledger append failed", slog.Any("error", err))
	}
	s.notify(ctx, userID, def)

	s.logger.Info("achievement awarded",
		slog.Int64("user_id", userID),
		slog.String("achievement", achievementID),
		slog.Float64("reward", def.Reward))
	return true, nil
}

// CheckWealth awards the balance-based achievements after any balance
// change.
func (s *AchievementService) CheckWealth(ctx context.Context, userID int64) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("wealth check failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	if profile.Balance >= millionaireBalance {
		if _, err := s.Award(ctx, userID, AchMillionaire); err != nil {
			s.logger.Warn("millionaire award failed", slog.Any("error", err))
		}
	}
}

// CheckProperties awards the ownership-based achievements after a purchase.
func (s *AchievementService) CheckProperties(ctx context.Context, userID int64) {
	assets, err := s.properties.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("property check failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	if len(assets) >= 1 {
		if _, err := s.Award(ctx, userID, AchPropertyMogul); err != nil {
			s.logger.Warn("property mogul award failed", slog.Any("error", err))
		}
	}
	if len(assets) >= portfolioKingCount {
		if _, err := s.Award(ctx, userID, AchPortfolioKing); err != nil {
			s.logger.Warn("portfolio king award failed", slog.Any("error", err))
		}
	}
}

func (s *AchievementService) notify(ctx context.Context, userID int64, def domain.Achievement) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("%s — %s Reward: %.0f", def.Title, def.Description, def.Reward)
	if err := s.notifier.Notify(ctx, userID, domain.EventAchievement, "Achievement unlocked", msg); err != nil {
		s.logger.Warn("notify failed", slog.Any("error", err))
	}
}
