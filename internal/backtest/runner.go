package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/risk"
	"github.com/yielddelta/backtester/internal/strategy"
)

// Job is one independent run in a batch.
type Job struct {
	Name   string
	Config Config
	Prices []market.PricePoint
	Pools  []market.PoolSnapshot
}

func (j Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	return string(j.Config.Strategy)
}

// RunAll runs jobs with at most workers in flight. Results come back in job
// order. The first failure cancels the jobs that have not finished.
func RunAll(ctx context.Context, engine *Engine, jobs []Job, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := engine.Run(ctx, job.Config, job.Prices, job.Pools)
			if err != nil {
				return fmt.Errorf("job %q: %w", job.label(), err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ErrNoRuns is returned by Sweep when asked for fewer than one run.
var ErrNoRuns = errors.New("sweep needs at least one run")

// SweepResult is one config simulated under consecutive seeds.
type SweepResult struct {
	Strategy   strategy.ID       `json:"strategy"`
	BaseSeed   int64             `json:"base_seed"`
	Runs       []*Result         `json:"-"`
	APY        risk.Distribution `json:"apy"`
	FinalValue risk.Distribution `json:"final_value"`
	Drawdown   risk.Distribution `json:"max_drawdown_pct"`
}

// Sweep runs job once per seed, starting at the job's seed (or a time-based
// seed when it is 0), and summarizes the spread of outcomes.
func Sweep(ctx context.Context, engine *Engine, job Job, runs, workers int) (*SweepResult, error) {
	if runs < 1 {
		return nil, ErrNoRuns
	}

	base := job.Config.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}

	jobs := make([]Job, runs)
	for i := range jobs {
		jobs[i] = job
		jobs[i].Config.Seed = base + int64(i)
		jobs[i].Name = fmt.Sprintf("%s#%d", job.label(), i)
	}

	results, err := RunAll(ctx, engine, jobs, workers)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	apys := make([]float64, runs)
	finals := make([]float64, runs)
	drawdowns := make([]float64, runs)
	for i, r := range results {
		apys[i] = r.APY
		finals[i] = r.FinalValue
		drawdowns[i] = r.MaxDrawdownPct
	}

	return &SweepResult{
		Strategy:   job.Config.Strategy,
		BaseSeed:   base,
		Runs:       results,
		APY:        risk.Summarize(apys),
		FinalValue: risk.Summarize(finals),
		Drawdown:   risk.Summarize(drawdowns),
	}, nil
}
