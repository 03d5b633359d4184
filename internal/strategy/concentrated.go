package strategy

import (
	"math"

	"github.com/yielddelta/backtester/internal/market"
)

const (
	baselineRangeWidth  = 0.10
	optimizedRangeWidth = 0.08
	ilRebalanceFraction = 0.02
)

// RangePosition is a concentrated-liquidity position split 50/50 at entry.
type RangePosition struct {
	LowerPrice   float64 `json:"lower_price"`
	UpperPrice   float64 `json:"upper_price"`
	LowerTick    int     `json:"lower_tick"`
	UpperTick    int     `json:"upper_tick"`
	Liquidity    float64 `json:"liquidity"`
	Token0Amount float64 `json:"token0_amount"`
	Token1Amount float64 `json:"token1_amount"`
}

func (p RangePosition) Kind() string { return "range" }

// Value prices token0 at price; token1 is the quote asset.
func (p RangePosition) Value(price float64) float64 {
	return p.Token0Amount*price + p.Token1Amount
}

// InRange reports whether price lies strictly inside the range.
func (p RangePosition) InRange(price float64) bool {
	return price > p.LowerPrice && price < p.UpperPrice
}

type concentrated struct {
	id    ID
	width float64
	opts  Options
}

func newConcentrated(id ID, width float64, opts Options) *concentrated {
	return &concentrated{id: id, width: width, opts: opts}
}

func (c *concentrated) ID() ID { return c.id }

func (c *concentrated) Open(capital float64, price market.PricePoint) Position {
	return c.openAt(capital, price.Close)
}

func (c *concentrated) openAt(capital, price float64) RangePosition {
	token0 := capital * 0.5 / price
	token1 := capital * 0.5
	lower := price * (1 - c.width)
	upper := price * (1 + c.width)

	return RangePosition{
		LowerPrice:   lower,
		UpperPrice:   upper,
		LowerTick:    PriceToTick(lower),
		UpperTick:    PriceToTick(upper),
		Liquidity:    math.Sqrt(token0 * token1),
		Token0Amount: token0,
		Token1Amount: token1,
	}
}

func (c *concentrated) Accrue(pos Position, day Day) (Position, Accrual) {
	rp := pos.(RangePosition)
	return rp, Accrual{Fees: shareOfFees(day.Pool, c.opts.FeeRate, rp.Liquidity)}
}

// ShouldRebalance fires when price leaves the range or IL exceeds 2% of the
// previous day's value.
func (c *concentrated) ShouldRebalance(pos Position, day Day, mark Mark) bool {
	if !thresholdDue(c.opts.Frequency, day.DaysSinceRebalance) {
		return false
	}
	rp := pos.(RangePosition)
	price := day.Price.Close
	if price <= rp.LowerPrice || price >= rp.UpperPrice {
		return true
	}
	return math.Abs(mark.UnrealizedIL) > ilRebalanceFraction*day.PortfolioValue
}

func (c *concentrated) Rebalance(_ Position, day Day, value float64) Position {
	return c.openAt(value, day.Price.Close)
}

func (c *concentrated) UnrealizedIL(_ Position, entryPrice, currentPrice, referenceValue float64) float64 {
	return ImpermanentLoss(entryPrice, currentPrice, referenceValue)
}
