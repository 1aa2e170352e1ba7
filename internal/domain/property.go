package domain

import "time"

// PropertyType describes one entry of the fixed property catalog.
type PropertyType struct {
	ID              string
	Name            string
	Price           float64
	BaseRent        float64 // rent per cycle at full condition
	MaintenanceCost float64 // debited on a maintenance event
	Tier            int
}

// PropertyAsset is a property owned by a user. Condition only decreases over
// time (decay) or drops sharply on a maintenance event; only a repair resets
// it to 100.
type PropertyAsset struct {
	ID              string
	UserID          int64
	Type            string // PropertyType.ID
	PurchasePrice   float64
	Condition       int // within [0, 100]
	LastRentCollect time.Time
	CreatedAt       time.Time
}

// ResaleFactor is the share of the purchase price returned when a property is
// sold back to the market.
const ResaleFactor = 0.8

// ResaleValue returns what the owner receives when selling the asset.
func (a PropertyAsset) ResaleValue() float64 {
	return a.PurchasePrice * ResaleFactor
}
