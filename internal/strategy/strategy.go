// Package strategy holds the position policies a backtest can simulate.
//
// A Policy decides how capital is deployed, what it earns each day and when
// the position is rebuilt. Policies never touch cumulative totals; the
// backtest driver owns the ledger and asks the policy for decisions.
package strategy

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/yielddelta/backtester/internal/market"
)

// ID names a strategy variant.
type ID string

const (
	ConcentratedLiquidity          ID = "concentrated-liquidity"
	ConcentratedLiquidityOptimized ID = "concentrated-liquidity-optimized"
	DeltaNeutral                   ID = "delta-neutral"
	YieldFarming                   ID = "yield-farming"
	Arbitrage                      ID = "arbitrage"
	StableMax                      ID = "stable-max"
)

var displayNames = map[ID]string{
	ConcentratedLiquidity:          "Concentrated Liquidity",
	ConcentratedLiquidityOptimized: "Concentrated Liquidity (Optimized)",
	DeltaNeutral:                   "Delta Neutral",
	YieldFarming:                   "Yield Farming",
	Arbitrage:                      "Arbitrage",
	StableMax:                      "Stable Max",
}

// DisplayName is the human readable strategy name.
func (id ID) DisplayName() string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return string(id)
}

// Valid reports whether id is a known strategy.
func (id ID) Valid() bool {
	_, ok := displayNames[id]
	return ok
}

// UsesPool reports whether the strategy earns from pool day data.
func (id ID) UsesPool() bool {
	switch id {
	case ConcentratedLiquidity, ConcentratedLiquidityOptimized, DeltaNeutral:
		return true
	}
	return false
}

// IDs returns every known strategy id in a stable order.
func IDs() []ID {
	ids := make([]ID, 0, len(displayNames))
	for id := range displayNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Frequency controls how often a policy may rebalance.
type Frequency string

const (
	Daily       Frequency = "daily"
	Weekly      Frequency = "weekly"
	OnThreshold Frequency = "on-threshold"
)

// Valid reports whether f is a known frequency. Empty means OnThreshold.
func (f Frequency) Valid() bool {
	switch f {
	case "", Daily, Weekly, OnThreshold:
		return true
	}
	return false
}

var (
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrUnknownFrequency = errors.New("unknown rebalance frequency")
	ErrNoRandomSource   = errors.New("strategy needs a random source")
)

// Position is a policy-owned, immutable snapshot of deployed capital.
type Position interface {
	// Kind names the position variant.
	Kind() string
	// Value is the mark-to-market value of the holdings at price,
	// excluding fees and gas carried by the driver.
	Value(price float64) float64
}

// Day is what a policy sees of the current simulation day.
type Day struct {
	Index     int
	Price     market.PricePoint
	PrevClose float64 // 0 on day 0
	// Pool is nil when the run has no pool series.
	Pool *market.PoolSnapshot
	// PortfolioValue is the previous day's value (initial capital on day 0).
	PortfolioValue     float64
	DaysSinceRebalance int
}

// Accrual is the income and cost a policy books for one day.
type Accrual struct {
	Fees  float64 // trading fees or realized trade profit
	Yield float64 // funding, rewards or interest
	Gas   float64 // costs outside of rebalances
}

// Income returns fees plus yield.
func (a Accrual) Income() float64 {
	return a.Fees + a.Yield
}

// Mark is the driver's valuation of the day before the rebalance decision.
type Mark struct {
	Value        float64
	UnrealizedIL float64
	Accrual      Accrual
}

// Policy is one strategy variant.
type Policy interface {
	ID() ID
	Open(capital float64, price market.PricePoint) Position
	Accrue(pos Position, day Day) (Position, Accrual)
	ShouldRebalance(pos Position, day Day, mark Mark) bool
	Rebalance(pos Position, day Day, value float64) Position
	UnrealizedIL(pos Position, entryPrice, currentPrice, referenceValue float64) float64
}

// Options parameterize a policy.
type Options struct {
	Frequency Frequency
	// FeeRate is the pool fee tier, used when a snapshot has volume but no fees.
	FeeRate float64
	// GasCost is the cost of one on-chain rebalance or trade.
	GasCost float64
	// Rand drives stochastic policies. Required for Arbitrage.
	Rand *rand.Rand
}

// New builds the policy for id.
func New(id ID, opts Options) (Policy, error) {
	if !opts.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrequency, opts.Frequency)
	}
	if opts.Frequency == "" {
		opts.Frequency = OnThreshold
	}

	switch id {
	case ConcentratedLiquidity:
		return newConcentrated(id, baselineRangeWidth, opts), nil
	case ConcentratedLiquidityOptimized:
		return newConcentrated(id, optimizedRangeWidth, opts), nil
	case DeltaNeutral:
		return &deltaNeutral{opts: opts}, nil
	case YieldFarming:
		return &yieldFarming{opts: opts}, nil
	case Arbitrage:
		if opts.Rand == nil {
			return nil, fmt.Errorf("%s: %w", id, ErrNoRandomSource)
		}
		return &arbitrage{opts: opts, rng: opts.Rand}, nil
	case StableMax:
		return &stableMax{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
}

// thresholdDue gates threshold checks by frequency: weekly waits 7 days.
func thresholdDue(freq Frequency, daysSinceRebalance int) bool {
	if freq == Weekly {
		return daysSinceRebalance >= 7
	}
	return true
}
