package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// seasonShares splits the season prize purse among the top balances,
// first place first.
var seasonShares = []float64{0.5, 0.3, 0.2}

// SeasonService pays out the accumulated tax pool to the leaderboard top at
// the turn of each season.
type SeasonService struct {
	prizeShare float64
	profiles   domain.ProfileStore
	economy    domain.EconomyStore
	ledger     domain.LedgerStore
	notifier   domain.Notifier
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

func NewSeasonService(
	prizeShare float64,
	profiles domain.ProfileStore,
	economy domain.EconomyStore,
	ledger domain.LedgerStore,
	notifier domain.Notifier,
	logger *slog.Logger,
) *SeasonService {
	return &SeasonService{
		prizeShare: prizeShare,
		profiles:   profiles,
		economy:    economy,
		ledger:     ledger,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "season_service")),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Distribute pays the season prizes and resets the tax pool. A pool too small
// to split is carried over untouched.
func (s *SeasonService) Distribute(ctx context.Context) error {
	pool, err := s.economy.TaxPool(ctx)
	if err != nil {
		return fmt.Errorf("season_service: read tax pool: %w", err)
	}
	purse := pool * s.prizeShare
	if purse < 1 {
		s.logger.Info("season skipped, purse too small", slog.Float64("pool", pool))
		return nil
	}

	winners, err := s.profiles.TopByBalance(ctx, len(seasonShares))
	if err != nil {
		return fmt.Errorf("season_service: leaderboard: %w", err)
	}
	if len(winners) == 0 {
		return nil
	}

	now := s.now().UTC()
	for i, w := range winners {
		prize := purse * seasonShares[i]
		if err := s.profiles.AdjustBalance(ctx, w.ID, prize); err != nil {
			s.logger.Error("season payout failed",
				slog.Int64("user_id", w.ID),
				slog.Any("error", err))
			continue
		}
		s.appendLedger(ctx, domain.LedgerEntry{
			ID:          s.newID(),
			UserID:      w.ID,
			Type:        domain.EntrySeasonReward,
			Amount:      prize,
			Description: fmt.Sprintf("season reward, place %d", i+1),
			CreatedAt:   now,
		})
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, w.ID, domain.EventSeasonReward,
				"Season reward",
				fmt.Sprintf("You finished #%d and won %.2f", i+1, prize)); err != nil {
				s.logger.Warn("season notify failed", slog.Any("error", err))
			}
		}
	}

	if err := s.economy.ResetTaxPool(ctx); err != nil {
		return fmt.Errorf("season_service: reset tax pool: %w", err)
	}

	s.logger.Info("season rewards distributed",
		slog.Float64("purse", purse),
		slog.Int("winners", len(winners)))
	return nil
}

func (s *SeasonService) appendLedger(ctx context.Context, entry domain.LedgerEntry) {
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("ledger append failed", slog.Any("error", err))
	}
}
