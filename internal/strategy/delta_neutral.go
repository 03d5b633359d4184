package strategy

import (
	"math"

	"github.com/yielddelta/backtester/internal/market"
)

const (
	fundingRateScale   = 0.0001
	lpCapitalFraction  = 0.3
	deltaDriftFraction = 0.05
)

// HedgedPosition is a spot long offset by a short of equal notional.
type HedgedPosition struct {
	LongTokens    float64 `json:"long_tokens"`
	ShortNotional float64 `json:"short_notional"`
	ShortTokens   float64 `json:"short_tokens"`
	EntryPrice    float64 `json:"entry_price"`
}

func (p HedgedPosition) Kind() string { return "hedged" }

// Value is long value plus short collateral plus short P&L.
func (p HedgedPosition) Value(price float64) float64 {
	return p.LongTokens*price + p.ShortNotional + p.ShortTokens*(p.EntryPrice-price)
}

// Drift is the long leg's value minus the short notional.
func (p HedgedPosition) Drift(price float64) float64 {
	return p.LongTokens*price - p.ShortNotional
}

type deltaNeutral struct {
	opts Options
}

func (d *deltaNeutral) ID() ID { return DeltaNeutral }

func (d *deltaNeutral) Open(capital float64, price market.PricePoint) Position {
	return hedgeAt(capital, price.Close)
}

func hedgeAt(capital, price float64) HedgedPosition {
	tokens := capital * 0.5 / price
	return HedgedPosition{
		LongTokens:    tokens,
		ShortNotional: capital * 0.5,
		ShortTokens:   tokens,
		EntryPrice:    price,
	}
}

// Accrue books LP fees on a slice of capital and the oscillating funding
// payment on the short leg. Funding can be negative.
func (d *deltaNeutral) Accrue(pos Position, day Day) (Position, Accrual) {
	hp := pos.(HedgedPosition)
	lpFees := shareOfFees(day.Pool, d.opts.FeeRate, day.PortfolioValue*lpCapitalFraction)
	funding := hp.ShortNotional * math.Sin(float64(day.Index)/7) * fundingRateScale
	return hp, Accrual{Fees: lpFees, Yield: funding}
}

func (d *deltaNeutral) ShouldRebalance(pos Position, day Day, mark Mark) bool {
	if !thresholdDue(d.opts.Frequency, day.DaysSinceRebalance) || mark.Value <= 0 {
		return false
	}
	hp := pos.(HedgedPosition)
	return math.Abs(hp.Drift(day.Price.Close))/mark.Value > deltaDriftFraction
}

// Rebalance re-strikes both legs at half of value each.
func (d *deltaNeutral) Rebalance(_ Position, day Day, value float64) Position {
	return hedgeAt(value, day.Price.Close)
}

func (d *deltaNeutral) UnrealizedIL(Position, float64, float64, float64) float64 {
	return 0
}
