package strategy

import (
	"math"
	"math/rand"

	"github.com/yielddelta/backtester/internal/market"
)

const (
	arbBaseProbability  = 0.40
	arbMaxVolatilityAdd = 0.20
	arbFailureRate      = 0.30
	arbMinSpread        = 0.002
	arbSpreadRange      = 0.004
	arbTradeFraction    = 0.2
	arbSlippage         = 0.0015
)

// ArbitragePosition is capital waiting for spreads.
type ArbitragePosition struct {
	Capital      float64 `json:"capital"`
	Attempts     int     `json:"attempts"`
	Trades       int     `json:"trades"`
	LastTradeDay int     `json:"last_trade_day"`
}

func (p ArbitragePosition) Kind() string { return "arbitrage" }

// Value is the idle capital; it has no price exposure.
func (p ArbitragePosition) Value(float64) float64 { return p.Capital }

type arbitrage struct {
	opts Options
	rng  *rand.Rand
}

func (a *arbitrage) ID() ID { return Arbitrage }

func (a *arbitrage) Open(capital float64, _ market.PricePoint) Position {
	return ArbitragePosition{Capital: capital, LastTradeDay: -1}
}

// Accrue rolls for an opportunity. More volatile days find more spreads.
// A failed attempt costs gas; a trade only executes when it nets positive
// after slippage and gas.
func (a *arbitrage) Accrue(pos Position, day Day) (Position, Accrual) {
	ap := pos.(ArbitragePosition)

	volatility := 0.0
	if day.PrevClose > 0 {
		volatility = math.Abs(day.Price.Close-day.PrevClose) / day.PrevClose
	}
	probability := arbBaseProbability + math.Min(arbMaxVolatilityAdd, volatility*100)

	if a.rng.Float64() >= probability {
		return ap, Accrual{}
	}

	ap.Attempts++
	if a.rng.Float64() < arbFailureRate {
		return ap, Accrual{Gas: a.opts.GasCost}
	}

	spread := arbMinSpread + a.rng.Float64()*arbSpreadRange
	amount := ap.Capital * arbTradeFraction
	gross := amount * spread
	slippage := amount * arbSlippage
	if gross-slippage-a.opts.GasCost <= 0 {
		return ap, Accrual{}
	}

	ap.Trades++
	ap.LastTradeDay = day.Index
	if day.Index == 0 {
		// Day 0 never rebalances, so the trade pays its own gas.
		return ap, Accrual{Fees: gross - slippage, Gas: a.opts.GasCost}
	}
	return ap, Accrual{Fees: gross - slippage}
}

// ShouldRebalance is true on days after day 0 that executed a trade; the
// trade's gas is the rebalance cost and its profit is folded into capital.
func (a *arbitrage) ShouldRebalance(pos Position, day Day, _ Mark) bool {
	return pos.(ArbitragePosition).LastTradeDay == day.Index
}

func (a *arbitrage) Rebalance(pos Position, _ Day, value float64) Position {
	ap := pos.(ArbitragePosition)
	ap.Capital = value
	return ap
}

func (a *arbitrage) UnrealizedIL(Position, float64, float64, float64) float64 {
	return 0
}
