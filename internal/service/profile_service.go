package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valuetycoon/tycoond/internal/domain"
)

const leaderboardSize = 10

// ProfileService manages player profiles and the balance leaderboard.
type ProfileService struct {
	profiles domain.ProfileStore
	ledger   domain.LedgerStore
	logger   *slog.Logger
}

func NewProfileService(profiles domain.ProfileStore, ledger domain.LedgerStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		ledger:   ledger,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Login creates the profile on first contact and refreshes the username on
// every subsequent one.
func (s *ProfileService) Login(ctx context.Context, userID int64, username string) (domain.Profile, error) {
	profile, err := s.profiles.Upsert(ctx, userID, username)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: upsert %d: %w", userID, err)
	}
	return profile, nil
}

// Get returns one profile.
func (s *ProfileService) Get(ctx context.Context, userID int64) (domain.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile_service: get %d: %w", userID, err)
	}
	return profile, nil
}

// Leaderboard returns the richest players by cash balance.
func (s *ProfileService) Leaderboard(ctx context.Context) ([]domain.Profile, error) {
	top, err := s.profiles.TopByBalance(ctx, leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("profile_service: leaderboard: %w", err)
	}
	return top, nil
}

// History returns a page of the user's ledger, newest first.
func (s *ProfileService) History(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	entries, err := s.ledger.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("profile_service: history %d: %w", userID, err)
	}
	return entries, nil
}
