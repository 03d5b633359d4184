// Package market supplies the daily price and pool series a backtest walks.
//
// Real data comes from CoinGecko (prices) and the DragonSwap subgraph
// (pool day data). When a source fails or returns nothing, a seeded
// synthetic generator takes over so callers always get a usable series.
package market

import (
	"errors"
	"time"
)

// DayMillis is one day in unix milliseconds.
const DayMillis int64 = 24 * 60 * 60 * 1000

// ErrNoData is returned by a source that answered but had no rows.
var ErrNoData = errors.New("market: no data returned")

// PricePoint is one daily OHLCV candle. Timestamp is unix milliseconds.
type PricePoint struct {
	Timestamp int64     `json:"timestamp"`
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PoolSnapshot is one day of pool state.
type PoolSnapshot struct {
	Timestamp   int64     `json:"timestamp"`
	Date        time.Time `json:"date"`
	Liquidity   float64   `json:"liquidity"`
	VolumeUSD   float64   `json:"volume_usd"`
	FeesUSD     float64   `json:"fees_usd"`
	Token0Price float64   `json:"token0_price"`
	Token1Price float64   `json:"token1_price"`
	TVLUSD      float64   `json:"tvl_usd"`
}

// PointFromClose builds a candle from a close-only quote. The free CoinGecko
// tier has no OHLC, so high/low are approximated at ±1%.
func PointFromClose(tsMillis int64, close, volume float64) PricePoint {
	return PricePoint{
		Timestamp: tsMillis,
		Date:      time.UnixMilli(tsMillis).UTC(),
		Open:      close,
		High:      close * 1.01,
		Low:       close * 0.99,
		Close:     close,
		Volume:    volume,
	}
}

// PoolAt returns the snapshot aligned with day i. A short series reuses its
// last snapshot; clamped reports whether that happened. An empty series
// returns nil.
func PoolAt(pools []PoolSnapshot, i int) (snap *PoolSnapshot, clamped bool) {
	if len(pools) == 0 {
		return nil, false
	}
	if i >= len(pools) {
		return &pools[len(pools)-1], true
	}
	return &pools[i], false
}
