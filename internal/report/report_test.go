package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yielddelta/backtester/internal/archive"
	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/metrics"
	"github.com/yielddelta/backtester/internal/risk"
	"github.com/yielddelta/backtester/internal/strategy"
)

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleResult(id strategy.ID, apy float64) *backtest.Result {
	return &backtest.Result{
		RunID:                "6f1c2a9e-1111-2222-3333-444455556666",
		Strategy:             id,
		StartDate:            day0,
		EndDate:              day0.AddDate(0, 0, 89),
		Seed:                 42,
		InitialCapital:       10000,
		FinalValue:           10350.25,
		TotalReturn:          350.25,
		TotalReturnPct:       3.5025,
		APY:                  apy,
		SharpeRatio:          1.23,
		SortinoRatio:         2.34,
		MaxDrawdown:          120,
		MaxDrawdownPct:       1.2,
		Volatility:           6.5,
		WinRate:              0.55,
		ProfitFactor:         1.8,
		TotalFeesEarned:      500,
		TotalGasSpent:        20,
		TotalImpermanentLoss: -130,
		NumberOfRebalances:   12,
		BestDay:              metrics.DayReturn{Index: 3, Date: day0.AddDate(0, 0, 3), ReturnPct: 2.5},
		WorstDay:             metrics.DayReturn{Index: 7, Date: day0.AddDate(0, 0, 7), ReturnPct: -1.75},
		Warnings: []backtest.Warning{
			{Code: backtest.WarnPoolSeriesShort, Message: "pool series has 80 days, prices 90"},
		},
	}
}

func TestTargetAPY(t *testing.T) {
	tests := []struct {
		id   strategy.ID
		want float64
	}{
		{strategy.ConcentratedLiquidity, 15.0},
		{strategy.ConcentratedLiquidityOptimized, 15.0},
		{strategy.StableMax, 8.5},
		{strategy.YieldFarming, 8.5},
		{strategy.DeltaNeutral, 8.5},
		{strategy.Arbitrage, 8.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			assert.Equal(t, tt.want, TargetAPY(tt.id))
		})
	}
}

func TestCheckAPY(t *testing.T) {
	tests := []struct {
		name     string
		id       strategy.ID
		apy      float64
		wantPass bool
		wantDiff float64
	}{
		{"on target", strategy.ConcentratedLiquidity, 15, true, 0},
		{"within tolerance", strategy.ConcentratedLiquidity, 17.5, true, 2.5},
		{"below tolerance", strategy.StableMax, 5.0, false, -3.5},
		{"exactly at tolerance fails", strategy.StableMax, 11.5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckAPY(sampleResult(tt.id, tt.apy))
			assert.Equal(t, tt.wantPass, check.Pass)
			assert.InDelta(t, tt.wantDiff, check.Difference, 1e-9)
			assert.Equal(t, tt.apy, check.Actual)
		})
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintResult(sampleResult(strategy.ConcentratedLiquidity, 16.2))

	out := buf.String()
	assert.Contains(t, out, "Concentrated Liquidity Strategy - Backtest Results")
	assert.Contains(t, out, "$10,000")
	assert.Contains(t, out, "$10,350.25")
	assert.Contains(t, out, "16.20%")
	assert.Contains(t, out, "55.00%", "win rate is printed as a percentage")
	assert.Contains(t, out, "$350", "net profit is fees minus gas minus |IL|")
	assert.Contains(t, out, "2025-03-04 (+2.50%)")
	assert.Contains(t, out, "2025-03-08 (-1.75%)")
	assert.Contains(t, out, backtest.WarnPoolSeriesShort)
	assert.Contains(t, out, "APY VALIDATION")
	assert.Contains(t, out, "PASS")
}

func TestPrintResultReviewNeeded(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintResult(sampleResult(strategy.StableMax, 2.0))

	out := buf.String()
	assert.Contains(t, out, "REVIEW NEEDED")
	assert.Contains(t, out, "-6.50%")
}

func TestPrintComparison(t *testing.T) {
	var buf bytes.Buffer
	results := []*backtest.Result{
		sampleResult(strategy.ConcentratedLiquidity, 15.5),
		sampleResult(strategy.StableMax, 30),
	}
	NewConsoleWriter(&buf).PrintComparison(results, []string{"baseline", ""})

	out := buf.String()
	assert.Contains(t, out, "STRATEGY COMPARISON")
	assert.Contains(t, strings.ToLower(out), "baseline")
	assert.Contains(t, strings.ToLower(out), "stable max")
	assert.Contains(t, out, "15.50%")
	assert.Contains(t, out, "30.00%")
	assert.Contains(t, out, "REVIEW")
}

func TestPrintComparisonEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintComparison(nil, nil)
	assert.Contains(t, buf.String(), "No runs to compare")
}

func TestPrintSweep(t *testing.T) {
	runs := []*backtest.Result{
		sampleResult(strategy.Arbitrage, 10),
		sampleResult(strategy.Arbitrage, 12),
		sampleResult(strategy.Arbitrage, 14),
	}
	sweep := &backtest.SweepResult{
		Strategy:   strategy.Arbitrage,
		BaseSeed:   100,
		Runs:       runs,
		APY:        risk.Summarize([]float64{10, 12, 14}),
		FinalValue: risk.Summarize([]float64{10100, 10200, 10300}),
		Drawdown:   risk.Summarize([]float64{1, 2, 3}),
	}

	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintSweep(sweep)

	out := buf.String()
	assert.Contains(t, out, "Arbitrage (3 runs, seeds 100..102)")
	assert.Contains(t, out, "12.00")
	assert.Contains(t, out, "VaR95")
}

func TestPrintBootstrap(t *testing.T) {
	result := &risk.BootstrapResult{
		Config:           risk.BootstrapConfig{NumSimulations: 500, HoldingPeriod: 30},
		InputSampleCount: 89,
		Returns:          risk.Summarize([]float64{-2, -1, 0, 1, 2, 3}),
	}

	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintBootstrap(result)

	out := buf.String()
	assert.Contains(t, out, "500 paths of 30 days from 89 daily returns")
	assert.Contains(t, out, "0.50%")
}

func TestPrintSeries(t *testing.T) {
	prices := []market.PricePoint{
		market.PointFromClose(day0.UnixMilli(), 0.41, 1000),
		market.PointFromClose(day0.AddDate(0, 0, 1).UnixMilli(), 0.42, 1000),
		market.PointFromClose(day0.AddDate(0, 0, 2).UnixMilli(), 0.43, 1000),
	}
	pools := []market.PoolSnapshot{{TVLUSD: 250000, VolumeUSD: 50000, FeesUSD: 150}}

	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintSeries(prices, pools, 2)

	out := buf.String()
	assert.Contains(t, out, "3 price points, 1 pool snapshots")
	assert.NotContains(t, out, "0.410000", "only the last two days are shown")
	assert.Contains(t, out, "0.430000")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleWriter(&buf).PrintHistory(nil)
	assert.Contains(t, buf.String(), "No archived runs")

	buf.Reset()
	NewConsoleWriter(&buf).PrintHistory([]archive.RunSummary{{
		RunID:      "6f1c2a9e-aaaa-bbbb-cccc-ddddeeeeffff",
		Strategy:   strategy.StableMax,
		StartDate:  day0,
		EndDate:    day0.AddDate(0, 0, 29),
		Days:       30,
		FinalValue: 10070,
		APY:        8.9,
		CreatedAt:  day0.AddDate(0, 1, 0),
	}})

	out := buf.String()
	assert.Contains(t, out, "6f1c2a9e")
	assert.NotContains(t, out, "ddddeeeeffff")
	assert.Contains(t, out, "stable-max")
	assert.Contains(t, out, "8.90%")
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10000, "$10,000"},
		{1234.5, "$1,234.5"},
		{-42.25, "-$42.25"},
		{0, "$0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, money(tt.in))
		})
	}
}

func runStable(t *testing.T) *backtest.Result {
	t.Helper()
	prices := make([]market.PricePoint, 10)
	for i := range prices {
		prices[i] = market.PointFromClose(day0.AddDate(0, 0, i).UnixMilli(), 1.0, 1000)
	}
	result, err := backtest.NewEngine(nil).Run(context.Background(), backtest.Config{
		Strategy:           strategy.StableMax,
		InitialCapital:     10000,
		RebalanceFrequency: strategy.Daily,
		Seed:               7,
	}, prices, nil)
	require.NoError(t, err)
	return result
}

func TestWriteCSV(t *testing.T) {
	result := runStable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result.DailyPerformance))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "date,timestamp,price,portfolio_value,daily_return_pct,cumulative_return_pct,fees_earned,impermanent_loss,gas_spent,rebalanced,position", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2025-03-01,"))

	var rows []*dayRow
	require.NoError(t, gocsv.Unmarshal(strings.NewReader(buf.String()), &rows))
	require.Len(t, rows, 10)
	last := result.DailyPerformance[9]
	assert.InDelta(t, last.PortfolioValue, rows[9].PortfolioValue, 1e-9)
	assert.Equal(t, last.Position.Kind(), rows[9].Position)
}

func TestWriteJSON(t *testing.T) {
	result := runStable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, result))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "stable-max", decoded["strategy"])
	assert.Len(t, decoded["daily_performance"], 10)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, ExportFile(path, func(w io.Writer) error {
		return WriteJSON(w, map[string]int{"days": 3})
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":3}`, string(data))

	boom := errors.New("boom")
	err = ExportFile(filepath.Join(t.TempDir(), "x.csv"), func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = ExportFile(filepath.Join(t.TempDir(), "missing", "x.csv"), func(io.Writer) error { return nil })
	assert.Error(t, err)
}
