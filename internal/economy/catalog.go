// Package economy implements the real-estate side of the game: the property
// catalog, the periodic rent/maintenance/decay tick, and world events.
package economy

import (
	"math"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/domain"
)

// Catalog is the fixed set of purchasable property types, ordered by tier.
type Catalog struct {
	types []domain.PropertyType
	byID  map[string]domain.PropertyType
}

// NewCatalog builds a catalog from the configured property entries.
func NewCatalog(entries []config.PropertyConfig) *Catalog {
	c := &Catalog{
		types: make([]domain.PropertyType, 0, len(entries)),
		byID:  make(map[string]domain.PropertyType, len(entries)),
	}
	for _, e := range entries {
		t := domain.PropertyType{
			ID:              e.ID,
			Name:            e.Name,
			Price:           e.Price,
			BaseRent:        e.Rent,
			MaintenanceCost: e.MaintenanceCost,
			Tier:            e.Tier,
		}
		c.types = append(c.types, t)
		c.byID[t.ID] = t
	}
	return c
}

// Types returns all catalog entries in configuration order.
func (c *Catalog) Types() []domain.PropertyType {
	out := make([]domain.PropertyType, len(c.types))
	copy(out, c.types)
	return out
}

// Get looks up a property type by id.
func (c *Catalog) Get(id string) (domain.PropertyType, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// RepairCostFactor scales the maintenance cost into the price of a full
// repair.
const RepairCostFactor = 3.0

// RepairCost returns what a full repair of the given type costs.
func (c *Catalog) RepairCost(typeID string) (float64, bool) {
	t, ok := c.byID[typeID]
	if !ok {
		return 0, false
	}
	return t.MaintenanceCost * RepairCostFactor, true
}

// RentFor returns the rent one cycle of the given type pays at the given
// condition. Condition at or above 80 pays full rent; below that the rent
// scales linearly with condition. The result is truncated to whole currency
// units.
func RentFor(t domain.PropertyType, condition int) float64 {
	factor := 1.0
	if condition < 80 {
		factor = float64(condition) / 100
	}
	return math.Floor(t.BaseRent * factor)
}
