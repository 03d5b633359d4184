package backtest

import (
	"math"

	"github.com/yielddelta/backtester/internal/strategy"
)

// simulator holds the mutable state of one run. The position itself is
// immutable; the simulator swaps it for the value the policy returns.
type simulator struct {
	policy  strategy.Policy
	gasCost float64

	position strategy.Position
	// pending is income earned since the last rebalance, net of attempt gas.
	// A rebalance folds it into the new position.
	pending float64

	priceAtLastRebalance float64
	lastRebalance        int
	realizedIL           float64
	unrealizedIL         float64

	stats Stats
}

// Stats are the running totals of a run.
type Stats struct {
	FeesEarned   float64 `json:"fees_earned"`
	GasSpent     float64 `json:"gas_spent"`
	RealizedIL   float64 `json:"realized_il"`
	UnrealizedIL float64 `json:"unrealized_il"`
	Rebalances   int     `json:"rebalances"`
}

// ImpermanentLoss is realized plus unrealized IL.
func (s Stats) ImpermanentLoss() float64 {
	return s.RealizedIL + s.UnrealizedIL
}

// dayOutcome is what one simulated day produced.
type dayOutcome struct {
	value      float64
	fees       float64
	gas        float64
	rebalanced bool
}

func newSimulator(policy strategy.Policy, gasCost float64) *simulator {
	return &simulator{policy: policy, gasCost: gasCost}
}

// initialize opens the first position at day 0's close.
func (s *simulator) initialize(capital float64, day strategy.Day) {
	s.position = s.policy.Open(capital, day.Price)
	s.pending = 0
	s.priceAtLastRebalance = day.Price.Close
	s.lastRebalance = 0
	s.realizedIL = 0
	s.unrealizedIL = 0
	s.stats = Stats{}
}

func (s *simulator) equity(price float64) float64 {
	return s.position.Value(price) + s.pending
}

// step runs accrue, mark, decide and rebalance for one day.
func (s *simulator) step(day strategy.Day) dayOutcome {
	price := day.Price.Close

	pos, acc := s.policy.Accrue(s.position, day)
	s.position = pos

	income := acc.Income()
	s.pending += income
	s.stats.FeesEarned += income

	out := dayOutcome{fees: income}
	if acc.Gas > 0 {
		gas := math.Min(acc.Gas, math.Max(s.equity(price), 0))
		acc.Gas = gas
		s.pending -= gas
		s.stats.GasSpent += gas
		out.gas += gas
	}

	value := s.equity(price)
	s.unrealizedIL = s.policy.UnrealizedIL(s.position, s.priceAtLastRebalance, price, day.PortfolioValue)

	mark := strategy.Mark{Value: value, UnrealizedIL: s.unrealizedIL, Accrual: acc}
	if day.Index > 0 && s.policy.ShouldRebalance(s.position, day, mark) {
		s.realizedIL += s.unrealizedIL
		s.unrealizedIL = 0

		gas := math.Min(s.gasCost, value)
		s.position = s.policy.Rebalance(s.position, day, value-gas)
		s.pending = 0
		s.priceAtLastRebalance = price
		s.lastRebalance = day.Index

		s.stats.GasSpent += gas
		s.stats.Rebalances++
		out.gas += gas
		out.rebalanced = true
		value = s.equity(price)
	}

	s.stats.RealizedIL = s.realizedIL
	s.stats.UnrealizedIL = s.unrealizedIL
	out.value = value
	return out
}

func (s *simulator) daysSinceRebalance(i int) int {
	return i - s.lastRebalance
}
