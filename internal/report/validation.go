package report

import (
	"math"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/strategy"
)

// Advertised vault APYs, in percent.
const (
	ConcentratedTargetAPY = 15.0
	StableTargetAPY       = 8.5
	APYTolerance          = 3.0
)

// APYCheck compares a run's APY with the vault's advertised figure.
type APYCheck struct {
	Target     float64 `json:"target"`
	Actual     float64 `json:"actual"`
	Difference float64 `json:"difference"`
	Pass       bool    `json:"pass"`
}

// TargetAPY is the advertised APY for the vault a strategy backs.
func TargetAPY(id strategy.ID) float64 {
	switch id {
	case strategy.ConcentratedLiquidity, strategy.ConcentratedLiquidityOptimized:
		return ConcentratedTargetAPY
	}
	return StableTargetAPY
}

// CheckAPY passes when the run lands strictly within APYTolerance points
// of its target.
func CheckAPY(r *backtest.Result) APYCheck {
	target := TargetAPY(r.Strategy)
	diff := r.APY - target
	return APYCheck{
		Target:     target,
		Actual:     r.APY,
		Difference: diff,
		Pass:       math.Abs(diff) < APYTolerance,
	}
}
