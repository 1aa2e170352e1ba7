// Package memory provides in-memory implementations of the domain store
// interfaces. They back unit tests and the single-process development mode
// where no PostgreSQL instance is available.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// QuoteStore is an in-memory domain.QuoteStore.
type QuoteStore struct {
	mu      sync.RWMutex
	quotes  domain.QuoteSet
	history []domain.PricePoint
}

// NewQuoteStore creates an empty in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(domain.QuoteSet)}
}

func (s *QuoteStore) UpsertQuotes(_ context.Context, quotes []domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quotes {
		s.quotes[q.Symbol] = q
	}
	return nil
}

func (s *QuoteStore) LatestQuotes(_ context.Context) (domain.QuoteSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.QuoteSet, len(s.quotes))
	for k, v := range s.quotes {
		out[k] = v
	}
	return out, nil
}

func (s *QuoteStore) AppendHistory(_ context.Context, points []domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, points...)
	return nil
}

func (s *QuoteStore) History(_ context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PricePoint
	for _, p := range s.history {
		if p.Symbol == symbol && !p.RecordedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// ProfileStore is an in-memory domain.ProfileStore.
type ProfileStore struct {
	mu              sync.RWMutex
	profiles        map[int64]domain.Profile
	startingBalance float64
}

// NewProfileStore creates an empty in-memory profile store. New accounts are
// seeded with startingBalance.
func NewProfileStore(startingBalance float64) *ProfileStore {
	return &ProfileStore{
		profiles:        make(map[int64]domain.Profile),
		startingBalance: startingBalance,
	}
}

func (s *ProfileStore) Upsert(_ context.Context, id int64, username string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		p = domain.Profile{
			ID:        id,
			Balance:   s.startingBalance,
			CreatedAt: time.Now().UTC(),
		}
	}
	p.Username = username
	s.profiles[id] = p
	return p, nil
}

func (s *ProfileStore) Get(_ context.Context, id int64) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *ProfileStore) AdjustBalance(_ context.Context, id int64, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustBalanceLocked(id, delta)
}

func (s *ProfileStore) adjustBalanceLocked(id int64, delta float64) error {
	p, ok := s.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Balance+delta < 0 {
		return domain.ErrInsufficientFunds
	}
	p.Balance += delta
	s.profiles[id] = p
	return nil
}

func (s *ProfileStore) TopByBalance(_ context.Context, limit int) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ProfileStore) ListIDs(_ context.Context, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// addVolumeLocked accrues trading volume without touching the balance.
func (s *ProfileStore) addVolumeLocked(id int64, volume float64) {
	if p, ok := s.profiles[id]; ok {
		p.TradingVolume += volume
		s.profiles[id] = p
	}
}

type spotKey struct {
	userID int64
	symbol string
}

// SpotPositionStore is an in-memory domain.SpotPositionStore. It shares the
// ProfileStore so that buys and sells mutate balances the way the fused
// PostgreSQL transactions do.
type SpotPositionStore struct {
	mu        sync.RWMutex
	profiles  *ProfileStore
	positions map[spotKey]domain.SpotPosition
}

// NewSpotPositionStore creates an empty in-memory spot position store bound
// to the given profile store.
func NewSpotPositionStore(profiles *ProfileStore) *SpotPositionStore {
	return &SpotPositionStore{
		profiles:  profiles,
		positions: make(map[spotKey]domain.SpotPosition),
	}
}

func (s *SpotPositionStore) Get(_ context.Context, userID int64, symbol string) (domain.SpotPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[spotKey{userID, symbol}]
	if !ok {
		return domain.SpotPosition{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *SpotPositionStore) ListByUser(_ context.Context, userID int64) ([]domain.SpotPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SpotPosition
	for k, p := range s.positions {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *SpotPositionStore) ApplyBuy(_ context.Context, pos domain.SpotPosition, totalCost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()

	if err := s.profiles.adjustBalanceLocked(pos.UserID, -totalCost); err != nil {
		return err
	}
	s.positions[spotKey{pos.UserID, pos.Symbol}] = pos
	return nil
}

func (s *SpotPositionStore) ApplySell(_ context.Context, pos domain.SpotPosition, remaining, payout, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()

	if err := s.profiles.adjustBalanceLocked(pos.UserID, payout); err != nil {
		return err
	}
	s.profiles.addVolumeLocked(pos.UserID, volume)

	key := spotKey{pos.UserID, pos.Symbol}
	if remaining < domain.DustEpsilon {
		delete(s.positions, key)
		return nil
	}
	p := s.positions[key]
	p.Amount = remaining
	s.positions[key] = p
	return nil
}

// LeverageStore is an in-memory domain.LeverageStore.
type LeverageStore struct {
	mu        sync.RWMutex
	profiles  *ProfileStore
	positions map[string]domain.LeveragedPosition // by position id
}

// NewLeverageStore creates an empty in-memory leverage store bound to the
// given profile store.
func NewLeverageStore(profiles *ProfileStore) *LeverageStore {
	return &LeverageStore{
		profiles:  profiles,
		positions: make(map[string]domain.LeveragedPosition),
	}
}

func (s *LeverageStore) Get(_ context.Context, userID int64, symbol string) (domain.LeveragedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.positions {
		if p.UserID == userID && p.Symbol == symbol {
			return p, nil
		}
	}
	return domain.LeveragedPosition{}, domain.ErrNotFound
}

func (s *LeverageStore) ListOpen(_ context.Context) ([]domain.LeveragedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LeveragedPosition, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (s *LeverageStore) Open(_ context.Context, pos domain.LeveragedPosition, totalCost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.UserID == pos.UserID && p.Symbol == pos.Symbol {
			return domain.ErrDuplicateLeverage
		}
	}

	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()
	if err := s.profiles.adjustBalanceLocked(pos.UserID, -totalCost); err != nil {
		return err
	}
	s.positions[pos.ID] = pos
	return nil
}

func (s *LeverageStore) Close(_ context.Context, id string, userID int64, payout float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok || p.UserID != userID {
		return domain.ErrNotFound
	}

	if payout > 0 {
		s.profiles.mu.Lock()
		err := s.profiles.adjustBalanceLocked(userID, payout)
		s.profiles.mu.Unlock()
		if err != nil {
			return err
		}
	}
	delete(s.positions, id)
	return nil
}

func (s *LeverageStore) Liquidate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.positions, id)
	return nil
}

// PropertyStore is an in-memory domain.PropertyStore.
type PropertyStore struct {
	mu       sync.RWMutex
	profiles *ProfileStore
	assets   map[string]domain.PropertyAsset // by asset id
}

// NewPropertyStore creates an empty in-memory property store bound to the
// given profile store.
func NewPropertyStore(profiles *ProfileStore) *PropertyStore {
	return &PropertyStore{
		profiles: profiles,
		assets:   make(map[string]domain.PropertyAsset),
	}
}

func (s *PropertyStore) Get(_ context.Context, id string) (domain.PropertyAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return domain.PropertyAsset{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *PropertyStore) ListByUser(_ context.Context, userID int64) ([]domain.PropertyAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PropertyAsset
	for _, a := range s.assets {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PropertyStore) ListAll(_ context.Context) ([]domain.PropertyAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PropertyAsset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PropertyStore) Buy(_ context.Context, asset domain.PropertyAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()

	if err := s.profiles.adjustBalanceLocked(asset.UserID, -asset.PurchasePrice); err != nil {
		return err
	}
	s.assets[asset.ID] = asset
	return nil
}

func (s *PropertyStore) Sell(_ context.Context, id string, userID int64, proceeds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID {
		return domain.ErrNotFound
	}

	s.profiles.mu.Lock()
	err := s.profiles.adjustBalanceLocked(userID, proceeds)
	s.profiles.mu.Unlock()
	if err != nil {
		return err
	}
	delete(s.assets, id)
	return nil
}

func (s *PropertyStore) CollectRent(_ context.Context, id string, userID int64, rent float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID || !a.LastRentCollect.Before(at) {
		return domain.ErrNotFound
	}
	a.LastRentCollect = at
	s.assets[id] = a

	if rent > 0 {
		s.profiles.mu.Lock()
		defer s.profiles.mu.Unlock()
		return s.profiles.adjustBalanceLocked(userID, rent)
	}
	return nil
}

func (s *PropertyStore) ApplyMaintenance(_ context.Context, id string, userID int64, condition int, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID {
		return domain.ErrNotFound
	}
	a.Condition = condition
	s.assets[id] = a

	s.profiles.mu.Lock()
	defer s.profiles.mu.Unlock()
	// A forced event: clamp at zero instead of failing the debit.
	if p, ok := s.profiles.profiles[userID]; ok {
		p.Balance -= cost
		if p.Balance < 0 {
			p.Balance = 0
		}
		s.profiles.profiles[userID] = p
	}
	return nil
}

func (s *PropertyStore) SetCondition(_ context.Context, id string, condition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Condition = condition
	s.assets[id] = a
	return nil
}

func (s *PropertyStore) Repair(_ context.Context, id string, userID int64, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID {
		return domain.ErrNotFound
	}

	s.profiles.mu.Lock()
	err := s.profiles.adjustBalanceLocked(userID, -cost)
	s.profiles.mu.Unlock()
	if err != nil {
		return err
	}
	a.Condition = 100
	s.assets[id] = a
	return nil
}

// LedgerStore is an in-memory domain.LedgerStore.
type LedgerStore struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

func (s *LedgerStore) Append(_ context.Context, e domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *LedgerStore) ListByUser(_ context.Context, userID int64, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *LedgerStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LedgerStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.LedgerEntry
	var deleted int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}

type achievementKey struct {
	userID        int64
	achievementID string
}

// AchievementStore is an in-memory domain.AchievementStore.
type AchievementStore struct {
	mu      sync.RWMutex
	awarded map[achievementKey]time.Time
}

// NewAchievementStore creates an empty in-memory achievement store.
func NewAchievementStore() *AchievementStore {
	return &AchievementStore{awarded: make(map[achievementKey]time.Time)}
}

func (s *AchievementStore) Award(_ context.Context, userID int64, achievementID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := achievementKey{userID, achievementID}
	if _, ok := s.awarded[key]; ok {
		return false, nil
	}
	s.awarded[key] = at
	return true, nil
}

func (s *AchievementStore) List(_ context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	for k, at := range s.awarded {
		if k.userID == userID {
			entries = append(entries, entry{k.achievementID, at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

// EconomyStore is an in-memory domain.EconomyStore.
type EconomyStore struct {
	mu      sync.RWMutex
	taxPool float64
}

// NewEconomyStore creates an in-memory economy store with an empty tax pool.
func NewEconomyStore() *EconomyStore {
	return &EconomyStore{}
}

func (s *EconomyStore) AddToTaxPool(_ context.Context, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxPool += amount
	return nil
}

func (s *EconomyStore) TaxPool(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxPool, nil
}

func (s *EconomyStore) ResetTaxPool(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxPool = 0
	return nil
}

var (
	_ domain.QuoteStore        = (*QuoteStore)(nil)
	_ domain.ProfileStore      = (*ProfileStore)(nil)
	_ domain.SpotPositionStore = (*SpotPositionStore)(nil)
	_ domain.LeverageStore     = (*LeverageStore)(nil)
	_ domain.PropertyStore     = (*PropertyStore)(nil)
	_ domain.LedgerStore       = (*LedgerStore)(nil)
	_ domain.AchievementStore  = (*AchievementStore)(nil)
	_ domain.EconomyStore      = (*EconomyStore)(nil)
)
