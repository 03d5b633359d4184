package strategy

import (
	"math"

	"github.com/yielddelta/backtester/internal/market"
)

const (
	farmBaseAPY          = 0.12
	farmRewardVolatility = 0.15
	farmHarvestInterval  = 7
)

// FarmPosition is staked principal; rewards accrue until the next harvest.
type FarmPosition struct {
	Principal      float64 `json:"principal"`
	LastHarvestDay int     `json:"last_harvest_day"`
	Harvests       int     `json:"harvests"`
}

func (p FarmPosition) Kind() string { return "farm" }

// Value is the staked principal. Pending rewards are carried by the driver.
func (p FarmPosition) Value(float64) float64 { return p.Principal }

type yieldFarming struct {
	opts Options
}

func (y *yieldFarming) ID() ID { return YieldFarming }

func (y *yieldFarming) Open(capital float64, _ market.PricePoint) Position {
	return FarmPosition{Principal: capital}
}

func (y *yieldFarming) Accrue(pos Position, day Day) (Position, Accrual) {
	fp := pos.(FarmPosition)
	dailyRate := math.Pow(1+farmBaseAPY, 1.0/365) - 1
	adjusted := dailyRate * (1 + math.Sin(float64(day.Index)/10)*farmRewardVolatility)
	return fp, Accrual{Yield: fp.Principal * adjusted}
}

// ShouldRebalance is a harvest cadence: daily for Daily, weekly otherwise.
func (y *yieldFarming) ShouldRebalance(_ Position, day Day, _ Mark) bool {
	interval := farmHarvestInterval
	if y.opts.Frequency == Daily {
		interval = 1
	}
	return day.DaysSinceRebalance >= interval
}

// Rebalance restakes everything, pending rewards included.
func (y *yieldFarming) Rebalance(pos Position, day Day, value float64) Position {
	fp := pos.(FarmPosition)
	return FarmPosition{
		Principal:      value,
		LastHarvestDay: day.Index,
		Harvests:       fp.Harvests + 1,
	}
}

func (y *yieldFarming) UnrealizedIL(Position, float64, float64, float64) float64 {
	return 0
}
