package strategy

import (
	"math"

	"github.com/yielddelta/backtester/internal/market"
)

const (
	stableBaseAPY   = 0.085
	stableAPYSwing  = 0.005
	stableSwingDays = 30
)

// LendingPosition is a stablecoin lending deposit.
// AccruedInterest mirrors the interest the driver carries in its fee ledger.
type LendingPosition struct {
	Principal       float64 `json:"principal"`
	AccruedInterest float64 `json:"accrued_interest"`
	EffectiveAPY    float64 `json:"effective_apy"`
	DaysHeld        int     `json:"days_held"`
}

func (p LendingPosition) Kind() string { return "lending" }

func (p LendingPosition) Value(float64) float64 { return p.Principal }

type stableMax struct{}

func (s *stableMax) ID() ID { return StableMax }

func (s *stableMax) Open(capital float64, _ market.PricePoint) Position {
	return LendingPosition{Principal: capital, EffectiveAPY: stableBaseAPY}
}

// Accrue compounds daily at an APY oscillating around 8.5%.
func (s *stableMax) Accrue(pos Position, day Day) (Position, Accrual) {
	lp := pos.(LendingPosition)
	lp.EffectiveAPY = stableBaseAPY + math.Sin(float64(day.Index)/stableSwingDays)*stableAPYSwing
	dailyRate := math.Pow(1+lp.EffectiveAPY, 1.0/365) - 1
	interest := (lp.Principal + lp.AccruedInterest) * dailyRate

	lp.AccruedInterest += interest
	lp.DaysHeld = day.Index + 1
	return lp, Accrual{Yield: interest}
}

func (s *stableMax) ShouldRebalance(Position, Day, Mark) bool { return false }

func (s *stableMax) Rebalance(pos Position, _ Day, _ float64) Position { return pos }

func (s *stableMax) UnrealizedIL(Position, float64, float64, float64) float64 {
	return 0
}
