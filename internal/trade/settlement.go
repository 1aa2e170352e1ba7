// Package trade implements the fee and position arithmetic of spot trading.
// Everything here is pure: services wire the results into store transactions.
package trade

import (
	"fmt"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// Receipt is the cost breakdown of one trade. For buys Total is what the
// buyer pays; for sells Total is what the seller receives.
type Receipt struct {
	Subtotal float64 // amount * price
	Fee      float64 // FeeRate * Subtotal
	Total    float64
}

// Settlement holds the tunable trading parameters.
type Settlement struct {
	FeeRate     float64       // fraction of the subtotal, e.g. 0.005
	HoldMinimum time.Duration // holding time before sells count as volume
}

// NewSettlement creates a Settlement with the given fee rate and volume
// holding minimum.
func NewSettlement(feeRate float64, holdMinimum time.Duration) Settlement {
	return Settlement{FeeRate: feeRate, HoldMinimum: holdMinimum}
}

// QuoteBuy prices a buy of the given amount at the given price. The fee is
// charged on top of the subtotal.
func (s Settlement) QuoteBuy(amount, price float64) Receipt {
	subtotal := amount * price
	fee := subtotal * s.FeeRate
	return Receipt{
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal + fee,
	}
}

// QuoteSell prices a sell of the given amount at the given price. The fee is
// deducted from the proceeds.
func (s Settlement) QuoteSell(amount, price float64) Receipt {
	subtotal := amount * price
	fee := subtotal * s.FeeRate
	return Receipt{
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal - fee,
	}
}

// MaxBuy returns the largest amount the given balance can afford at the given
// price, fee included: MaxBuy * price * (1 + FeeRate) never exceeds balance.
func (s Settlement) MaxBuy(balance, price float64) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}
	return balance / price / (1 + s.FeeRate)
}

// MergeBuy folds a new purchase into an existing position using a
// weighted-average cost basis. A zero-valued existing position starts fresh.
func MergeBuy(existing domain.SpotPosition, amount, price float64) domain.SpotPosition {
	if existing.Amount < domain.DustEpsilon {
		existing.Amount = amount
		existing.AvgBuyPrice = price
		return existing
	}
	total := existing.Amount + amount
	existing.AvgBuyPrice = (existing.Amount*existing.AvgBuyPrice + amount*price) / total
	existing.Amount = total
	return existing
}

// Remaining returns what is left of a position after selling the given
// amount. Selling more than is held fails with ErrInsufficientHoldings; the
// dust epsilon absorbs float drift so that "sell everything" always works.
func Remaining(existing domain.SpotPosition, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("trade: sell amount must be positive, got %g", amount)
	}
	if amount > existing.Amount+domain.DustEpsilon {
		return 0, domain.ErrInsufficientHoldings
	}
	remaining := existing.Amount - amount
	if remaining < domain.DustEpsilon {
		return 0, nil
	}
	return remaining, nil
}

// EligibleVolume returns the sell proceeds that count toward the property
// unlock volume. Positions held shorter than the holding minimum contribute
// nothing, which keeps wash-trading from farming the unlock.
func (s Settlement) EligibleVolume(pos domain.SpotPosition, proceeds float64, now time.Time) float64 {
	if now.Sub(pos.OpenedAt) < s.HoldMinimum {
		return 0
	}
	return proceeds
}
