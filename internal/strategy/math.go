package strategy

import (
	"math"

	"github.com/yielddelta/backtester/internal/market"
)

// ImpermanentLoss is the constant-product IL of moving from entryPrice to
// currentPrice, scaled by referenceValue. The result is <= 0.
func ImpermanentLoss(entryPrice, currentPrice, referenceValue float64) float64 {
	if entryPrice <= 0 || currentPrice <= 0 {
		return 0
	}
	ratio := currentPrice / entryPrice
	lpValue := 2 * math.Sqrt(ratio) / (1 + ratio)
	return (lpValue - 1) * referenceValue
}

// PriceToTick maps a price to its Uniswap-v3 tick.
func PriceToTick(price float64) int {
	if price <= 0 {
		return math.MinInt32
	}
	return int(math.Floor(math.Log(price) / math.Log(1.0001)))
}

// poolFees returns the pool's fees for the day, deriving them from volume
// and the fee tier when the snapshot carries none.
func poolFees(pool *market.PoolSnapshot, feeRate float64) float64 {
	if pool == nil {
		return 0
	}
	if pool.FeesUSD > 0 {
		return pool.FeesUSD
	}
	return pool.VolumeUSD * feeRate
}

// shareOfFees returns the fees earned by positionLiquidity. Zero or missing
// pool liquidity earns nothing.
func shareOfFees(pool *market.PoolSnapshot, feeRate, positionLiquidity float64) float64 {
	if pool == nil || pool.Liquidity <= 0 || positionLiquidity <= 0 {
		return 0
	}
	return poolFees(pool, feeRate) * positionLiquidity / pool.Liquidity
}
