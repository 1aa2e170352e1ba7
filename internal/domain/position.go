package domain

import "time"

// DustEpsilon is the smallest spot holding worth keeping. A sell that leaves
// less than this behind deletes the position instead of leaving a near-zero
// balance around.
const DustEpsilon = 1e-8

// SpotPosition is an unleveraged crypto holding with a weighted-average cost
// basis.
type SpotPosition struct {
	ID          string
	UserID      int64
	Symbol      string
	Amount      float64 // >= 0
	AvgBuyPrice float64 // > 0
	OpenedAt    time.Time
}

// LeveragedPosition is an open leveraged long. At most one exists per
// (user, symbol) at a time.
type LeveragedPosition struct {
	ID               string
	UserID           int64
	Symbol           string
	Amount           float64
	EntryPrice       float64
	Leverage         int // within [2, 50]
	LiquidationPrice float64
	OpenedAt         time.Time
}

// Margin returns the capital the user actually committed to the position.
func (p LeveragedPosition) Margin() float64 {
	return p.Amount * p.EntryPrice / float64(p.Leverage)
}

// Notional returns the full economic size of the position.
func (p LeveragedPosition) Notional() float64 {
	return p.Amount * p.EntryPrice
}

// RiskLevel classifies how close a leveraged position is to liquidation.
type RiskLevel string

const (
	RiskLiquidated RiskLevel = "liquidated"
	RiskExtreme    RiskLevel = "extreme" // distance to liquidation < 5%
	RiskHigh       RiskLevel = "high"    // distance to liquidation < 15%
	RiskMedium     RiskLevel = "medium"
)

// RiskEvent is the read-only result of evaluating one leveraged position
// against the current market price. Risk scans emit events; only an explicit
// liquidation call mutates state.
type RiskEvent struct {
	Position     LeveragedPosition
	CurrentPrice float64
	Level        RiskLevel
	PnLPercent   float64 // leveraged PnL in percent of margin
	DistancePct  float64 // (current - liquidation) / liquidation, in percent
	EvaluatedAt  time.Time
}
