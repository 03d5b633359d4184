package backtest

import (
	"math"
	"time"

	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/strategy"
)

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func pricesFrom(closes ...float64) []market.PricePoint {
	out := make([]market.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = market.PointFromClose(testStart.AddDate(0, 0, i).UnixMilli(), c, 1_000_000)
	}
	return out
}

func flatPrices(n int, close float64) []market.PricePoint {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = close
	}
	return pricesFrom(closes...)
}

// trendPrices moves from start to start*(1+move) geometrically over n days.
func trendPrices(n int, start, move float64) []market.PricePoint {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start * math.Pow(1+move, float64(i)/float64(n-1))
	}
	return pricesFrom(closes...)
}

func syntheticPrices(n int) []market.PricePoint {
	return market.NewGenerator(11).Prices(testStart.AddDate(0, 0, n-1), n)
}

func steadyPools(n int, liquidity, fees float64) []market.PoolSnapshot {
	out := make([]market.PoolSnapshot, n)
	for i := range out {
		out[i] = market.PoolSnapshot{
			Timestamp: testStart.AddDate(0, 0, i).UnixMilli(),
			Date:      testStart.AddDate(0, 0, i),
			Liquidity: liquidity,
			VolumeUSD: fees / 0.003,
			FeesUSD:   fees,
			TVLUSD:    liquidity,
		}
	}
	return out
}

func baseConfig(id strategy.ID) Config {
	return Config{
		Strategy:            id,
		InitialCapital:      10000,
		RebalanceFrequency:  strategy.OnThreshold,
		FeeRate:             0.003,
		GasCostPerRebalance: 0.5,
		Seed:                42,
	}
}

// forcedRebalance overrides a policy's predicate with a fixed set of days.
type forcedRebalance struct {
	strategy.Policy
	days map[int]bool
}

func (f forcedRebalance) ShouldRebalance(_ strategy.Position, day strategy.Day, _ strategy.Mark) bool {
	return f.days[day.Index]
}

func countRebalanced(records []DailyRecord) int {
	n := 0
	for _, r := range records {
		if r.Rebalanced {
			n++
		}
	}
	return n
}

func hasWarning(warnings []Warning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
