package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yielddelta/backtester/internal/market"
)

func mustNew(t *testing.T, id ID, opts Options) Policy {
	t.Helper()
	p, err := New(id, opts)
	require.NoError(t, err)
	return p
}

func TestConcentratedOpen(t *testing.T) {
	tests := []struct {
		id    ID
		width float64
	}{
		{ConcentratedLiquidity, 0.10},
		{ConcentratedLiquidityOptimized, 0.08},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			p := mustNew(t, tt.id, Options{})
			pos := p.Open(10000, price(0.5)).(RangePosition)

			assert.InDelta(t, 0.5*(1-tt.width), pos.LowerPrice, 1e-12)
			assert.InDelta(t, 0.5*(1+tt.width), pos.UpperPrice, 1e-12)
			assert.Less(t, pos.LowerPrice, pos.UpperPrice)
			assert.Less(t, pos.LowerTick, pos.UpperTick)
			assert.InDelta(t, 10000, pos.Token0Amount, 1e-9)
			assert.InDelta(t, 5000, pos.Token1Amount, 1e-9)
			assert.InDelta(t, math.Sqrt(10000*5000), pos.Liquidity, 1e-9)
			assert.InDelta(t, 10000, pos.Value(0.5), 1e-9)
			assert.True(t, pos.InRange(0.5))
		})
	}
}

func TestConcentratedFees(t *testing.T) {
	p := mustNew(t, ConcentratedLiquidity, Options{FeeRate: 0.003})
	pos := p.Open(10000, price(0.5)).(RangePosition)

	tests := []struct {
		name string
		pool *market.PoolSnapshot
		want float64
	}{
		{"share of pool fees", &market.PoolSnapshot{Liquidity: 250000, FeesUSD: 150}, 150 * pos.Liquidity / 250000},
		{"fees derived from volume", &market.PoolSnapshot{Liquidity: 250000, VolumeUSD: 50000}, 150 * pos.Liquidity / 250000},
		{"zero liquidity earns nothing", &market.PoolSnapshot{Liquidity: 0, FeesUSD: 150}, 0},
		{"no pool earns nothing", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, acc := p.Accrue(pos, Day{Price: price(0.5), Pool: tt.pool})
			assert.InDelta(t, tt.want, acc.Fees, 1e-9)
			assert.Zero(t, acc.Yield)
			assert.Zero(t, acc.Gas)
		})
	}
}

func TestConcentratedShouldRebalance(t *testing.T) {
	p := mustNew(t, ConcentratedLiquidity, Options{})
	pos := p.Open(10000, price(100))

	tests := []struct {
		name  string
		close float64
		il    float64
		want  bool
	}{
		{"inside range", 105, 0, false},
		{"just past upper bound", 110.5, 0, true},
		{"above range", 120, 0, true},
		{"past lower bound", 89.5, 0, true},
		{"il beyond two percent", 100, -201, true},
		{"il within two percent", 100, -199, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := Day{Index: 3, Price: price(tt.close), PortfolioValue: 10000, DaysSinceRebalance: 3}
			got := p.ShouldRebalance(pos, day, Mark{Value: 10000, UnrealizedIL: tt.il})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConcentratedILThresholdUsesPreviousValue(t *testing.T) {
	p := mustNew(t, ConcentratedLiquidity, Options{})
	pos := p.Open(10000, price(100))
	day := Day{Index: 3, Price: price(100), PortfolioValue: 10000, DaysSinceRebalance: 3}

	// 2% of today's 9000 mark is 180, but the threshold is 2% of yesterday's 10000.
	assert.False(t, p.ShouldRebalance(pos, day, Mark{Value: 9000, UnrealizedIL: -190}))

	day.PortfolioValue = 9000
	assert.True(t, p.ShouldRebalance(pos, day, Mark{Value: 10000, UnrealizedIL: -190}))
}

func TestConcentratedWeeklyGate(t *testing.T) {
	p := mustNew(t, ConcentratedLiquidity, Options{Frequency: Weekly})
	pos := p.Open(10000, price(100))
	mark := Mark{Value: 10000}

	assert.False(t, p.ShouldRebalance(pos, Day{Price: price(150), DaysSinceRebalance: 3}, mark))
	assert.True(t, p.ShouldRebalance(pos, Day{Price: price(150), DaysSinceRebalance: 7}, mark))
}

func TestConcentratedRebalanceRecenters(t *testing.T) {
	p := mustNew(t, ConcentratedLiquidityOptimized, Options{})
	old := p.Open(10000, price(100))

	next := p.Rebalance(old, Day{Price: price(120)}, 10500).(RangePosition)
	assert.InDelta(t, 120*0.92, next.LowerPrice, 1e-9)
	assert.InDelta(t, 120*1.08, next.UpperPrice, 1e-9)
	assert.InDelta(t, 10500, next.Value(120), 1e-9)
	assert.Less(t, next.LowerPrice, next.UpperPrice)
}

func TestDeltaNeutral(t *testing.T) {
	p := mustNew(t, DeltaNeutral, Options{})
	pos := p.Open(10000, price(2)).(HedgedPosition)

	for _, px := range []float64{1, 1.5, 2, 3, 10} {
		assert.InDelta(t, 10000, pos.Value(px), 1e-9, "price %v", px)
	}

	mark := Mark{Value: 10000}
	assert.False(t, p.ShouldRebalance(pos, Day{Price: price(2.15), DaysSinceRebalance: 1}, mark), "7.5% move is 3.75% drift")
	assert.True(t, p.ShouldRebalance(pos, Day{Price: price(2.25), DaysSinceRebalance: 1}, mark), "12.5% move is 6.25% drift")
	assert.True(t, p.ShouldRebalance(pos, Day{Price: price(1.75), DaysSinceRebalance: 1}, mark))

	next := p.Rebalance(pos, Day{Price: price(2.5)}, 10100).(HedgedPosition)
	assert.InDelta(t, 10100*0.5/2.5, next.LongTokens, 1e-9)
	assert.InDelta(t, 0, next.Drift(2.5), 1e-9)
	assert.InDelta(t, 10100, next.Value(2.5), 1e-9)

	assert.Zero(t, p.UnrealizedIL(pos, 2, 3, 10000))
}

func TestDeltaNeutralAccrue(t *testing.T) {
	p := mustNew(t, DeltaNeutral, Options{})
	pos := p.Open(10000, price(2))
	pool := &market.PoolSnapshot{Liquidity: 300000, FeesUSD: 300}

	_, day0 := p.Accrue(pos, Day{Index: 0, Price: price(2), Pool: pool, PortfolioValue: 10000})
	assert.InDelta(t, 300*3000.0/300000, day0.Fees, 1e-9)
	assert.Zero(t, day0.Yield, "sin(0) funding")

	_, day5 := p.Accrue(pos, Day{Index: 5, Price: price(2), Pool: pool, PortfolioValue: 10000})
	assert.InDelta(t, 5000*math.Sin(5.0/7)*0.0001, day5.Yield, 1e-12)
	assert.Greater(t, day5.Yield, 0.0)

	_, day30 := p.Accrue(pos, Day{Index: 30, Price: price(2)})
	assert.Less(t, day30.Yield, 0.0, "funding turns negative")
	assert.Zero(t, day30.Fees)
}

func TestYieldFarming(t *testing.T) {
	p := mustNew(t, YieldFarming, Options{})
	pos := p.Open(10000, price(1))

	_, acc := p.Accrue(pos, Day{Index: 0})
	assert.InDelta(t, 10000*(math.Pow(1.12, 1.0/365)-1), acc.Yield, 1e-9)

	assert.False(t, p.ShouldRebalance(pos, Day{DaysSinceRebalance: 6}, Mark{}))
	assert.True(t, p.ShouldRebalance(pos, Day{DaysSinceRebalance: 7}, Mark{}))

	next := p.Rebalance(pos, Day{Index: 7}, 10021).(FarmPosition)
	assert.Equal(t, 10021.0, next.Principal)
	assert.Equal(t, 7, next.LastHarvestDay)
	assert.Equal(t, 1, next.Harvests)

	daily := mustNew(t, YieldFarming, Options{Frequency: Daily})
	assert.True(t, daily.ShouldRebalance(pos, Day{DaysSinceRebalance: 1}, Mark{}))
}

func TestStableMax(t *testing.T) {
	p := mustNew(t, StableMax, Options{})
	pos := p.Open(10000, price(1)).(LendingPosition)
	assert.Equal(t, 0.085, pos.EffectiveAPY)

	next, acc := p.Accrue(pos, Day{Index: 0})
	lp := next.(LendingPosition)
	assert.InDelta(t, 10000*(math.Pow(1.085, 1.0/365)-1), acc.Yield, 1e-9)
	assert.Equal(t, acc.Yield, lp.AccruedInterest)
	assert.Equal(t, 1, lp.DaysHeld)
	assert.Equal(t, 10000.0, lp.Value(123), "no price exposure")

	_, later := p.Accrue(lp, Day{Index: 47})
	assert.Greater(t, later.Yield, acc.Yield, "compounds and APY swings up")

	assert.False(t, p.ShouldRebalance(lp, Day{DaysSinceRebalance: 100}, Mark{}))
	assert.Zero(t, p.UnrealizedIL(lp, 1, 5, 10000))
}

func runArbitrage(seed int64, gas float64, closes []float64) ([]Accrual, ArbitragePosition) {
	p, _ := New(Arbitrage, Options{GasCost: gas, Rand: rand.New(rand.NewSource(seed))})
	pos := p.Open(10000, price(closes[0]))
	accruals := make([]Accrual, 0, len(closes))
	prev := 0.0
	for i, c := range closes {
		var acc Accrual
		pos, acc = p.Accrue(pos, Day{Index: i, Price: price(c), PrevClose: prev})
		accruals = append(accruals, acc)
		prev = c
	}
	return accruals, pos.(ArbitragePosition)
}

func TestArbitrageDeterministic(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1 + 0.01*math.Sin(float64(i))
	}

	a1, p1 := runArbitrage(99, 0.5, closes)
	a2, p2 := runArbitrage(99, 0.5, closes)
	assert.Equal(t, a1, a2)
	assert.Equal(t, p1, p2)

	assert.Greater(t, p1.Attempts, 0)
	assert.Greater(t, p1.Trades, 0)
	assert.LessOrEqual(t, p1.Trades, p1.Attempts)

	for i, a := range a1 {
		assert.GreaterOrEqual(t, a.Fees, 0.0)
		if a.Gas > 0 && i > 0 {
			assert.Zero(t, a.Fees, "a failed attempt earns nothing")
		}
	}
}

func TestArbitrageDayZeroTradePaysGas(t *testing.T) {
	closes := []float64{1, 1, 1}

	found := false
	for seed := int64(1); seed <= 200 && !found; seed++ {
		accruals, pos := runArbitrage(seed, 0.5, closes)
		if pos.Trades == 0 || accruals[0].Fees == 0 {
			continue
		}
		found = true
		assert.Equal(t, 0.5, accruals[0].Gas, "seed %d", seed)
		assert.Greater(t, accruals[0].Fees, accruals[0].Gas)
	}
	require.True(t, found, "no seed traded on day 0")
}

func TestArbitrageLaterTradeLeavesGasToRebalance(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1
	}

	accruals, _ := runArbitrage(5, 0.5, closes)
	for i, a := range accruals {
		if i > 0 && a.Fees > 0 {
			assert.Zero(t, a.Gas, "day %d", i)
		}
	}
}

func TestArbitrageVolatilityRaisesAttempts(t *testing.T) {
	const days = 2000
	flat := make([]float64, days)
	volatile := make([]float64, days)
	for i := range flat {
		flat[i] = 1
		volatile[i] = 1
		if i%2 == 1 {
			volatile[i] = 1.01
		}
	}

	_, calm := runArbitrage(17, 0.5, flat)
	_, busy := runArbitrage(17, 0.5, volatile)

	// About 40% of flat days and 60% of volatile days find an opportunity.
	assert.InDelta(t, 0.40*days, float64(calm.Attempts), 0.05*days)
	assert.InDelta(t, 0.60*days, float64(busy.Attempts), 0.05*days)
	assert.Greater(t, busy.Attempts, calm.Attempts)
}

func TestArbitrageUnprofitableTradesSkipped(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1
	}

	accruals, pos := runArbitrage(3, 1000, closes)
	assert.Zero(t, pos.Trades)
	for _, a := range accruals {
		assert.Zero(t, a.Fees)
	}
}

func TestArbitrageShouldRebalanceOnTradeDay(t *testing.T) {
	p := mustNew(t, Arbitrage, Options{Rand: rand.New(rand.NewSource(1))})
	pos := ArbitragePosition{Capital: 10000, LastTradeDay: 4}

	assert.True(t, p.ShouldRebalance(pos, Day{Index: 4}, Mark{}))
	assert.False(t, p.ShouldRebalance(pos, Day{Index: 5}, Mark{}))

	next := p.Rebalance(pos, Day{Index: 4}, 10003).(ArbitragePosition)
	assert.Equal(t, 10003.0, next.Capital)
}
