package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
	"github.com/valuetycoon/tycoond/internal/economy"
)

// PropertyService handles the property market: buying from the catalog,
// selling back at the resale rate, and repairs.
type PropertyService struct {
	cfg          config.GameConfig
	catalog      *economy.Catalog
	properties   domain.PropertyStore
	profiles     domain.ProfileStore
	ledger       domain.LedgerStore
	achievements *AchievementService
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

func NewPropertyService(
	cfg config.GameConfig,
	catalog *economy.Catalog,
	properties domain.PropertyStore,
	profiles domain.ProfileStore,
	ledger domain.LedgerStore,
	achievements *AchievementService,
	logger *slog.Logger,
) *PropertyService {
	return &PropertyService{
		cfg:          cfg,
		catalog:      catalog,
		properties:   properties,
		profiles:     profiles,
		ledger:       ledger,
		achievements: achievements,
		logger:       logger.With(slog.String("component", "property_service")),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// CatalogEntry pairs a property type with whether the user already owns one.
type CatalogEntry struct {
	Type  domain.PropertyType `json:"type"`
	Owned bool                `json:"owned"`
}

// Catalog lists every purchasable property type, flagging the ones the user
// already owns. The market itself stays locked until the user has traded
// enough volume.
func (s *PropertyService) Catalog(ctx context.Context, userID int64) ([]CatalogEntry, error) {
	owned, err := s.properties.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("property_service: list owned for %d: %w", userID, err)
	}
	ownedTypes := make(map[string]bool, len(owned))
	for _, a := range owned {
		ownedTypes[a.Type] = true
	}

	types := s.catalog.Types()
	entries := make([]CatalogEntry, 0, len(types))
	for _, t := range types {
		entries = append(entries, CatalogEntry{Type: t, Owned: ownedTypes[t.ID]})
	}
	return entries, nil
}

// Unlocked reports whether the user has traded enough volume to access the
// property market.
func (s *PropertyService) Unlocked(ctx context.Context, userID int64) (bool, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("property_service: profile %d: %w", userID, err)
	}
	return profile.TradingVolume >= s.cfg.MinVolumeForProperty, nil
}

// Buy purchases one property of the given type. The market must be unlocked
// and the user may own at most one property per type.
func (s *PropertyService) Buy(ctx context.Context, userID int64, typeID string) (domain.PropertyAsset, error) {
	t, ok := s.catalog.Get(typeID)
	if !ok {
		return domain.PropertyAsset{}, fmt.Errorf("property_service: type %s: %w", typeID, domain.ErrNotFound)
	}

	unlocked, err := s.Unlocked(ctx, userID)
	if err != nil {
		return domain.PropertyAsset{}, err
	}
	if !unlocked {
		return domain.PropertyAsset{}, domain.ErrPropertyLocked
	}

	owned, err := s.properties.ListByUser(ctx, userID)
	if err != nil {
		return domain.PropertyAsset{}, fmt.Errorf("property_service: list owned for %d: %w", userID, err)
	}
	for _, a := range owned {
		if a.Type == typeID {
			return domain.PropertyAsset{}, domain.ErrAlreadyOwned
		}
	}

	now := s.now().UTC()
	asset := domain.PropertyAsset{
		ID:              s.newID(),
		UserID:          userID,
		Type:            typeID,
		PurchasePrice:   t.Price,
		Condition:       100,
		LastRentCollect: now,
		CreatedAt:       now,
	}
	if err := s.properties.Buy(ctx, asset); err != nil {
		return domain.PropertyAsset{}, fmt.Errorf("property_service: buy %s: %w", typeID, err)
	}

	s.appendLedger(ctx, domain.LedgerEntry{
		ID:          s.newID(),
		UserID:      userID,
		Type:        domain.EntryBuyProperty,
		Amount:      -t.Price,
		Description: fmt.Sprintf("bought %s for %.2f", t.Name, t.Price),
		CreatedAt:   now,
	})

	if s.achievements != nil {
		s.achievements.CheckProperties(ctx, userID)
	}

	s.logger.Info("property bought",
		slog.Int64("user_id", userID),
		slog.String("type", typeID),
		slog.Float64("price", t.Price))
	return asset, nil
}

// Sell returns a property to the market at the resale rate.
func (s *PropertyService) Sell(ctx context.Context, userID int64, assetID string) (float64, error) {
	asset, err := s.properties.Get(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("property_service: asset %s: %w", assetID, err)
	}
	if asset.UserID != userID {
		return 0, fmt.Errorf("property_service: asset %s: %w", assetID, domain.ErrNotFound)
	}

	proceeds := asset.ResaleValue()
	if err := s.properties.Sell(ctx, assetID, userID, proceeds); err != nil {
		return 0, fmt.Errorf("property_service: sell %s: %w", assetID, err)
	}

	s.appendLedger(ctx, domain.LedgerEntry{
		ID:          s.newID(),
		UserID:      userID,
		Type:        domain.EntrySellProperty,
		Amount:      proceeds,
		Description: fmt.Sprintf("sold %s for %.2f", asset.Type, proceeds),
		CreatedAt:   s.now().UTC(),
	})

	s.logger.Info("property sold",
		slog.Int64("user_id", userID),
		slog.String("asset_id", assetID),
		slog.Float64("proceeds", proceeds))
	return proceeds, nil
}

// Repair restores a property to full condition for a multiple of its
// maintenance cost. It fails when the owner cannot afford the work.
func (s *PropertyService) Repair(ctx context.Context, userID int64, assetID string) (float64, error) {
	asset, err := s.properties.Get(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("property_service: asset %s: %w", assetID, err)
	}
	if asset.UserID != userID {
		return 0, fmt.Errorf("property_service: asset %s: %w", assetID, domain.ErrNotFound)
	}

	cost, ok := s.catalog.RepairCost(asset.Type)
	if !ok {
		return 0, fmt.Errorf("property_service: type %s: %w", asset.Type, domain.ErrNotFound)
	}
	if err := s.properties.Repair(ctx, assetID, userID, cost); err != nil {
		return 0, fmt.Errorf("property_service: repair %s: %w", assetID, err)
	}

	s.appendLedger(ctx, domain.LedgerEntry{
		ID:          s.newID(),
		UserID:      userID,
		Type:        domain.EntryPropertyRepair,
		Amount:      -cost,
		Description: fmt.Sprintf("repaired %s for %.2f", asset.Type, cost),
		CreatedAt:   s.now().UTC(),
	})

	s.logger.Info("property repaired",
		slog.Int64("user_id", userID),
		slog.String("asset_id", assetID),
		slog.Float64("cost", cost))
	return cost, nil
}

// Owned lists the user's properties.
func (s *PropertyService) Owned(ctx context.Context, userID int64) ([]domain.PropertyAsset, error) {
	assets, err := s.properties.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("property_service: list owned for %d: %w", userID, err)
	}
	return assets, nil
}

func (s *PropertyService) appendLedger(ctx context.Context, entry domain.LedgerEntry) {
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("ledger append failed", slog.Any("error", err))
	}
}
