// Package backtest walks a price series day by day through a strategy
// policy and reports how the position performed.
package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/metrics"
	"github.com/yielddelta/backtester/internal/strategy"
	"github.com/yielddelta/backtester/pkg/logger"
)

// Engine runs backtest simulations. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	logger *logger.Logger
}

// DailyRecord is the state of the portfolio at the close of one day.
type DailyRecord struct {
	Date                time.Time         `json:"date"`
	Timestamp           int64             `json:"timestamp"`
	Price               float64           `json:"price"`
	PortfolioValue      float64           `json:"portfolio_value"`
	DailyReturnPct      float64           `json:"daily_return_pct"`
	CumulativeReturnPct float64           `json:"cumulative_return_pct"`
	FeesEarned          float64           `json:"fees_earned"`
	ImpermanentLoss     float64           `json:"impermanent_loss"`
	GasSpent            float64           `json:"gas_spent"`
	Rebalanced          bool              `json:"rebalanced"`
	Position            strategy.Position `json:"position"`
}

// Result is the aggregate outcome of one run.
type Result struct {
	RunID          string      `json:"run_id"`
	Strategy       strategy.ID `json:"strategy"`
	StartDate      time.Time   `json:"start_date"`
	EndDate        time.Time   `json:"end_date"`
	Seed           int64       `json:"seed"`
	Config         Config      `json:"config"`
	InitialCapital float64     `json:"initial_capital"`
	FinalValue     float64     `json:"final_value"`

	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	APY            float64 `json:"apy"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Volatility     float64 `json:"volatility"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`

	TotalFeesEarned      float64 `json:"total_fees_earned"`
	TotalGasSpent        float64 `json:"total_gas_spent"`
	TotalImpermanentLoss float64 `json:"total_impermanent_loss"`
	NumberOfRebalances   int     `json:"number_of_rebalances"`

	AverageDailyReturn float64           `json:"average_daily_return"`
	BestDay            metrics.DayReturn `json:"best_day"`
	WorstDay           metrics.DayReturn `json:"worst_day"`

	DailyPerformance []DailyRecord `json:"daily_performance"`
	Warnings         []Warning     `json:"warnings,omitempty"`
}

// NetProfit is fees less gas and the magnitude of impermanent loss.
func (r *Result) NetProfit() float64 {
	il := r.TotalImpermanentLoss
	if il < 0 {
		il = -il
	}
	return r.TotalFeesEarned - r.TotalGasSpent - il
}

// NewEngine creates a new backtest engine. A nil logger discards output.
func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{logger: log}
}

// Run simulates cfg over prices. pools is index-aligned with prices and may
// be shorter or empty. An empty price series yields a zero-day result.
func (e *Engine) Run(ctx context.Context, cfg Config, prices []market.PricePoint, pools []market.PoolSnapshot) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if err := validateSeries(prices); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	policy, err := strategy.New(cfg.Strategy, strategy.Options{
		Frequency: cfg.RebalanceFrequency,
		FeeRate:   cfg.FeeRate,
		GasCost:   cfg.GasCostPerRebalance,
		Rand:      rand.New(rand.NewSource(cfg.Seed)),
	})
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	runLog := e.logger.WithFields(map[string]interface{}{
		"strategy":        cfg.Strategy,
		"days":            len(prices),
		"initial_capital": cfg.InitialCapital,
		"frequency":       cfg.RebalanceFrequency,
		"seed":            cfg.Seed,
	})
	runLog.Info("Starting backtest")
	startTime := time.Now()

	records, stats, err := e.simulate(ctx, cfg, policy, prices, pools)
	if err != nil {
		return nil, err
	}

	warnings := seriesWarnings(cfg.Strategy, prices, pools)
	if w, ok := flatReturns(records); ok {
		warnings = append(warnings, w)
	}
	for _, w := range warnings {
		runLog.WithFields(map[string]interface{}{"code": w.Code}).Warn(w.Message)
	}

	result := ComputeResult(records, cfg, stats)
	result.RunID = uuid.NewString()
	result.Warnings = warnings

	runLog.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"duration":     time.Since(startTime).Seconds(),
		"rebalances":   result.NumberOfRebalances,
		"final_value":  fmt.Sprintf("%.2f", result.FinalValue),
		"apy":          fmt.Sprintf("%.2f%%", result.APY),
		"sharpe_ratio": fmt.Sprintf("%.2f", result.SharpeRatio),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.MaxDrawdownPct),
	}).Info("Backtest completed")

	return result, nil
}

// simulate walks the day loop. cfg must already be validated.
func (e *Engine) simulate(ctx context.Context, cfg Config, policy strategy.Policy, prices []market.PricePoint, pools []market.PoolSnapshot) ([]DailyRecord, Stats, error) {
	records := make([]DailyRecord, 0, len(prices))
	if len(prices) == 0 {
		return records, Stats{}, nil
	}

	sim := newSimulator(policy, cfg.GasCostPerRebalance)
	prevValue := cfg.InitialCapital

	for i, price := range prices {
		if err := ctx.Err(); err != nil {
			return nil, Stats{}, fmt.Errorf("backtest cancelled at day %d: %w", i, err)
		}

		pool, _ := market.PoolAt(pools, i)
		day := strategy.Day{
			Index:          i,
			Price:          price,
			Pool:           pool,
			PortfolioValue: prevValue,
		}
		if i == 0 {
			sim.initialize(cfg.InitialCapital, day)
		} else {
			day.PrevClose = prices[i-1].Close
			day.DaysSinceRebalance = sim.daysSinceRebalance(i)
		}

		out := sim.step(day)

		dailyReturn := 0.0
		if i > 0 && prevValue > 0 {
			dailyReturn = (out.value - prevValue) / prevValue * 100
		}
		records = append(records, DailyRecord{
			Date:                price.Date,
			Timestamp:           price.Timestamp,
			Price:               price.Close,
			PortfolioValue:      out.value,
			DailyReturnPct:      dailyReturn,
			CumulativeReturnPct: (out.value - cfg.InitialCapital) / cfg.InitialCapital * 100,
			FeesEarned:          out.fees,
			ImpermanentLoss:     sim.stats.ImpermanentLoss(),
			GasSpent:            out.gas,
			Rebalanced:          out.rebalanced,
			Position:            sim.position,
		})
		prevValue = out.value
	}
	return records, sim.stats, nil
}

// ComputeResult derives the aggregate result from the daily records and
// the run's totals. It does not touch RunID or Warnings.
func ComputeResult(records []DailyRecord, cfg Config, stats Stats) *Result {
	points := make([]metrics.Point, len(records))
	for i, r := range records {
		points[i] = metrics.Point{
			Date:           r.Date,
			Timestamp:      r.Timestamp,
			PortfolioValue: r.PortfolioValue,
			DailyReturnPct: r.DailyReturnPct,
		}
	}
	summary := metrics.Compute(points, cfg.InitialCapital)

	result := &Result{
		Strategy:             cfg.Strategy,
		StartDate:            cfg.StartDate,
		EndDate:              cfg.EndDate,
		Seed:                 cfg.Seed,
		Config:               cfg,
		InitialCapital:       cfg.InitialCapital,
		FinalValue:           summary.FinalValue,
		TotalReturn:          summary.TotalReturn,
		TotalReturnPct:       summary.TotalReturnPct,
		APY:                  summary.APY,
		SharpeRatio:          summary.SharpeRatio,
		SortinoRatio:         summary.SortinoRatio,
		MaxDrawdown:          summary.MaxDrawdown,
		MaxDrawdownPct:       summary.MaxDrawdownPct,
		Volatility:           summary.Volatility,
		WinRate:              summary.WinRate,
		ProfitFactor:         summary.ProfitFactor,
		TotalFeesEarned:      stats.FeesEarned,
		TotalGasSpent:        stats.GasSpent,
		TotalImpermanentLoss: stats.ImpermanentLoss(),
		NumberOfRebalances:   stats.Rebalances,
		AverageDailyReturn:   summary.AverageDailyReturn,
		BestDay:              summary.BestDay,
		WorstDay:             summary.WorstDay,
		DailyPerformance:     records,
	}

	if len(records) > 0 {
		if result.StartDate.IsZero() {
			result.StartDate = records[0].Date
		}
		if result.EndDate.IsZero() {
			result.EndDate = records[len(records)-1].Date
		}
	}
	return result
}
