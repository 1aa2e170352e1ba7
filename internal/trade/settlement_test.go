package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuetycoon/tycoond/internal/domain"
)

func TestQuoteBuyChargesFeeOnTop(t *testing.T) {
	s := NewSettlement(0.005, time.Hour)

	r := s.QuoteBuy(0.1, 60_000)
	assert.InEpsilon(t, 6_000.0, r.Subtotal, 1e-9)
	assert.InEpsilon(t, 30.0, r.Fee, 1e-9)
	assert.InEpsilon(t, 6_030.0, r.Total, 1e-9)
}

func TestQuoteSellDeductsFee(t *testing.T) {
	s := NewSettlement(0.005, time.Hour)

	r := s.QuoteSell(0.1, 60_000)
	assert.InEpsilon(t, 6_000.0, r.Subtotal, 1e-9)
	assert.InEpsilon(t, 30.0, r.Fee, 1e-9)
	assert.InEpsilon(t, 5_970.0, r.Total, 1e-9)
}

func TestMaxBuyIsAffordable(t *testing.T) {
	s := NewSettlement(0.005, time.Hour)

	cases := []struct {
		balance float64
		price   float64
	}{
		{10_000, 61_500},
		{123.45, 41.20},
		{1_000_000, 2_150},
		{0.01, 61_500},
	}
	for _, tc := range cases {
		max := s.MaxBuy(tc.balance, tc.price)
		cost := s.QuoteBuy(max, tc.price).Total
		assert.LessOrEqual(t, cost, tc.balance*(1+1e-12),
			"max buy must remain affordable at balance %g price %g", tc.balance, tc.price)
	}

	assert.Zero(t, s.MaxBuy(0, 100))
	assert.Zero(t, s.MaxBuy(100, 0))
}

func TestMergeBuyWeightedAverage(t *testing.T) {
	pos := domain.SpotPosition{Amount: 1, AvgBuyPrice: 100}

	merged := MergeBuy(pos, 1, 200)
	assert.InEpsilon(t, 2.0, merged.Amount, 1e-9)
	assert.InEpsilon(t, 150.0, merged.AvgBuyPrice, 1e-9)

	merged = MergeBuy(merged, 2, 300)
	assert.InEpsilon(t, 4.0, merged.Amount, 1e-9)
	assert.InEpsilon(t, 225.0, merged.AvgBuyPrice, 1e-9)
}

func TestMergeBuyFreshPosition(t *testing.T) {
	merged := MergeBuy(domain.SpotPosition{}, 0.5, 61_500)
	assert.Equal(t, 0.5, merged.Amount)
	assert.Equal(t, 61_500.0, merged.AvgBuyPrice)
}

func TestRemainingDustCollapsesToZero(t *testing.T) {
	pos := domain.SpotPosition{Amount: 0.3}

	// Float drift: 0.3 - 0.1*3 is not exactly zero.
	remaining, err := Remaining(pos, 0.1+0.1+0.1)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestRemainingRejectsOversell(t *testing.T) {
	pos := domain.SpotPosition{Amount: 1}

	_, err := Remaining(pos, 1.5)
	assert.ErrorIs(t, err, domain.ErrInsufficientHoldings)

	_, err = Remaining(pos, 0)
	assert.Error(t, err)
	_, err = Remaining(pos, -1)
	assert.Error(t, err)
}

func TestRemainingPartialSell(t *testing.T) {
	pos := domain.SpotPosition{Amount: 2}

	remaining, err := Remaining(pos, 0.5)
	require.NoError(t, err)
	assert.InEpsilon(t, 1.5, remaining, 1e-9)
}

func TestEligibleVolumeRequiresHoldingTime(t *testing.T) {
	s := NewSettlement(0.005, time.Hour)
	now := time.Now()

	young := domain.SpotPosition{OpenedAt: now.Add(-30 * time.Minute)}
	assert.Zero(t, s.EligibleVolume(young, 5_000, now))

	aged := domain.SpotPosition{OpenedAt: now.Add(-2 * time.Hour)}
	assert.Equal(t, 5_000.0, s.EligibleVolume(aged, 5_000, now))

	exact := domain.SpotPosition{OpenedAt: now.Add(-time.Hour)}
	assert.Equal(t, 5_000.0, s.EligibleVolume(exact, 5_000, now))
}
