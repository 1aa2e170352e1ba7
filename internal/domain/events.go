package domain

import (
	"context"
	"time"
)

// EventKind identifies a notification event. The notifier filters on these.
type EventKind string

const (
	EventLiquidation        EventKind = "liquidation"
	EventLiquidationWarning EventKind = "liquidation_warning"
	EventRent               EventKind = "rent"
	EventMaintenance        EventKind = "maintenance"
	EventWorldEvent         EventKind = "world_event"
	EventSeasonReward       EventKind = "season_reward"
	EventAchievement        EventKind = "achievement"
)

// Notifier delivers user-facing events. Delivery is best-effort: callers
// treat a returned error as advisory and never abort the surrounding
// operation because of it. UserID 0 means broadcast.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind EventKind, title, message string) error
}

// WorldEvent is one of the canned market-news events broadcast at random.
type WorldEvent struct {
	ID      string
	Message string
	Effect  float64 // sentiment multiplier, purely cosmetic for now
}

// Achievement is a one-time unlockable with a cash reward.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Reward      float64
}

// StreamMessage is one entry read back from the signal bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// PriceSignal is the JSON payload published on the signal bus after every
// successful market refresh; the WebSocket hub forwards it to web clients.
type PriceSignal struct {
	Quotes    map[string]Quote `json:"quotes"`
	UpdatedAt time.Time        `json:"updated_at"`
}
