package domain

import "time"

// Profile is a player account. Balance and trading volume are mutated only
// through atomic store operations.
type Profile struct {
	ID            int64 // Telegram user id
	Username      string
	Balance       float64
	TradingVolume float64 // lifetime eligible sell volume in EUR
	CreatedAt     time.Time
}

// LedgerEntryType tags a ledger entry with the economic action that caused it.
type LedgerEntryType string

const (
	EntryBuyCrypto      LedgerEntryType = "buy_crypto"
	EntrySellCrypto     LedgerEntryType = "sell_crypto"
	EntryLeverageTrade  LedgerEntryType = "leverage_trade"
	EntryLiquidation    LedgerEntryType = "liquidation"
	EntryRent           LedgerEntryType = "rent"
	EntryMaintenance    LedgerEntryType = "maintenance"
	EntryBuyProperty    LedgerEntryType = "buy_property"
	EntrySellProperty   LedgerEntryType = "sell_property"
	EntryPropertyRepair LedgerEntryType = "property_repair"
	EntryAchievement    LedgerEntryType = "achievement"
	EntrySeasonReward   LedgerEntryType = "season_reward"
)

// LedgerEntry is one append-only row of a user's transaction history.
// Amounts are signed: credits positive, debits negative.
type LedgerEntry struct {
	ID          string
	UserID      int64
	Type        LedgerEntryType
	Amount      float64
	Description string
	CreatedAt   time.Time
}
