package market

import (
	"math"
	"math/rand"
	"time"
)

// Synthetic pool assumptions for a SEI/USDC pool.
const (
	syntheticBaseTVL     = 250000.0
	syntheticBaseVolume  = 50000.0
	syntheticPoolFeeRate = 0.003
	syntheticToken0Price = 0.5
	syntheticToken1Price = 1.0

	syntheticBasePrice  = 0.5
	syntheticMaxStep    = 0.02
	syntheticCycleAmp   = 0.05
	syntheticBaseVolUSD = 5_000_000.0
)

// Generator produces synthetic series with a weekly cycle and bounded jitter.
// Every call starts from the same seed, so equal inputs give equal series.
type Generator struct {
	seed int64
}

// NewGenerator creates a generator. Seed 0 uses the current time.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{seed: seed}
}

// Seed returns the seed in use.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Pools generates one snapshot per day from start to end inclusive.
func (g *Generator) Pools(start, end time.Time) []PoolSnapshot {
	startMs := start.UnixMilli()
	days := int((end.UnixMilli() - startMs) / DayMillis)
	if days < 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(g.seed))
	out := make([]PoolSnapshot, 0, days+1)

	for i := 0; i <= days; i++ {
		ts := startMs + int64(i)*DayMillis
		variance := 1 + math.Sin(float64(i)/7)*0.15
		jitter := 0.9 + rng.Float64()*0.2
		volume := syntheticBaseVolume * variance * jitter

		out = append(out, PoolSnapshot{
			Timestamp:   ts,
			Date:        time.UnixMilli(ts).UTC(),
			Liquidity:   syntheticBaseTVL * variance,
			VolumeUSD:   volume,
			FeesUSD:     volume * syntheticPoolFeeRate,
			Token0Price: syntheticToken0Price,
			Token1Price: syntheticToken1Price,
			TVLUSD:      syntheticBaseTVL * variance,
		})
	}
	return out
}

// Prices generates days candles ending on the day containing end.
func (g *Generator) Prices(end time.Time, days int) []PricePoint {
	if days <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(g.seed))
	lastDay := end.UTC().Truncate(24 * time.Hour).UnixMilli()
	out := make([]PricePoint, 0, days)

	walk := syntheticBasePrice
	for i := 0; i < days; i++ {
		if i > 0 {
			walk *= 1 + (rng.Float64()*2-1)*syntheticMaxStep
		}
		close := walk * (1 + math.Sin(float64(i)/7)*syntheticCycleAmp)
		volume := syntheticBaseVolUSD * (0.9 + rng.Float64()*0.2)
		ts := lastDay - int64(days-1-i)*DayMillis

		out = append(out, PointFromClose(ts, close, volume))
	}
	return out
}
