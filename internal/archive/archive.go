// Package archive persists finished backtest runs so they can be listed
// and compared later.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/strategy"
)

// ErrNotFound is returned when a run id is not archived.
var ErrNotFound = errors.New("archive: run not found")

// Store saves and lists runs.
type Store interface {
	Save(ctx context.Context, result *backtest.Result, opts SaveOptions) error
	List(ctx context.Context, limit int) ([]RunSummary, error)
	Get(ctx context.Context, runID string) (*RunSummary, error)
	Days(ctx context.Context, runID string) ([]DayRow, error)
	Close() error
}

// SaveOptions carry context that is not part of the result.
type SaveOptions struct {
	// PlanHash links the run to the plan that produced it, if any.
	PlanHash string
}

// RunSummary is the archived headline of a run.
type RunSummary struct {
	RunID              string      `json:"run_id"`
	Strategy           strategy.ID `json:"strategy"`
	PlanHash           string      `json:"plan_hash,omitempty"`
	Seed               int64       `json:"seed"`
	StartDate          time.Time   `json:"start_date"`
	EndDate            time.Time   `json:"end_date"`
	Days               int         `json:"days"`
	InitialCapital     float64     `json:"initial_capital"`
	FinalValue         float64     `json:"final_value"`
	APY                float64     `json:"apy"`
	SharpeRatio        float64     `json:"sharpe_ratio"`
	MaxDrawdownPct     float64     `json:"max_drawdown_pct"`
	NumberOfRebalances int         `json:"number_of_rebalances"`
	TotalFeesEarned    float64     `json:"total_fees_earned"`
	TotalGasSpent      float64     `json:"total_gas_spent"`
	TotalIL            float64     `json:"total_impermanent_loss"`
	ConfigJSON         []byte      `json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
}

// DayRow is one archived daily record. The position is kept as raw JSON
// since its shape depends on the strategy.
type DayRow struct {
	Day             int             `json:"day"`
	Date            time.Time       `json:"date"`
	PortfolioValue  float64         `json:"portfolio_value"`
	DailyReturnPct  float64         `json:"daily_return_pct"`
	FeesEarned      float64         `json:"fees_earned"`
	ImpermanentLoss float64         `json:"impermanent_loss"`
	GasSpent        float64         `json:"gas_spent"`
	Rebalanced      bool            `json:"rebalanced"`
	Position        json.RawMessage `json:"position"`
}

func summarize(result *backtest.Result, opts SaveOptions, now time.Time) (RunSummary, error) {
	if result == nil || result.RunID == "" {
		return RunSummary{}, errors.New("archive: result has no run id")
	}

	cfgJSON, err := json.Marshal(result.Config)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to marshal config: %w", err)
	}

	return RunSummary{
		RunID:              result.RunID,
		Strategy:           result.Strategy,
		PlanHash:           opts.PlanHash,
		Seed:               result.Seed,
		StartDate:          result.StartDate.UTC(),
		EndDate:            result.EndDate.UTC(),
		Days:               len(result.DailyPerformance),
		InitialCapital:     result.InitialCapital,
		FinalValue:         result.FinalValue,
		APY:                result.APY,
		SharpeRatio:        result.SharpeRatio,
		MaxDrawdownPct:     result.MaxDrawdownPct,
		NumberOfRebalances: result.NumberOfRebalances,
		TotalFeesEarned:    result.TotalFeesEarned,
		TotalGasSpent:      result.TotalGasSpent,
		TotalIL:            result.TotalImpermanentLoss,
		ConfigJSON:         cfgJSON,
		CreatedAt:          now.UTC(),
	}, nil
}

func dayRows(records []backtest.DailyRecord) ([]DayRow, error) {
	rows := make([]DayRow, len(records))
	for i, r := range records {
		pos, err := json.Marshal(r.Position)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal position for day %d: %w", i, err)
		}
		rows[i] = DayRow{
			Day:             i,
			Date:            r.Date.UTC(),
			PortfolioValue:  r.PortfolioValue,
			DailyReturnPct:  r.DailyReturnPct,
			FeesEarned:      r.FeesEarned,
			ImpermanentLoss: r.ImpermanentLoss,
			GasSpent:        r.GasSpent,
			Rebalanced:      r.Rebalanced,
			Position:        pos,
		}
	}
	return rows, nil
}

// Nop discards everything. It backs the "none" archive driver.
type Nop struct{}

func (Nop) Save(context.Context, *backtest.Result, SaveOptions) error { return nil }
func (Nop) List(context.Context, int) ([]RunSummary, error) { return nil, nil }
func (Nop) Get(context.Context, string) (*RunSummary, error) { return nil, ErrNotFound }
func (Nop) Days(context.Context, string) ([]DayRow, error) { return nil, ErrNotFound }
func (Nop) Close() error { return nil }
