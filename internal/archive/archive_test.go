package archive

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/strategy"
	"github.com/yielddelta/backtester/pkg/config"
	"github.com/yielddelta/backtester/pkg/database"
)

func sampleResult(t *testing.T, id strategy.ID) *backtest.Result {
	t.Helper()
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := market.NewGenerator(3).Prices(end, 20)

	res, err := backtest.NewEngine(nil).Run(context.Background(), backtest.Config{
		Strategy:            id,
		InitialCapital:      10000,
		FeeRate:             0.003,
		GasCostPerRebalance: 0.5,
		Seed:                3,
	}, prices, nil)
	require.NoError(t, err)
	return res
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	res := sampleResult(t, strategy.YieldFarming)

	require.NoError(t, store.Save(ctx, res, SaveOptions{PlanHash: "abc"}))

	got, err := store.Get(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, strategy.YieldFarming, got.Strategy)
	assert.Equal(t, "abc", got.PlanHash)
	assert.Equal(t, int64(3), got.Seed)
	assert.Equal(t, 20, got.Days)
	assert.InDelta(t, res.FinalValue, got.FinalValue, 1e-9)
	assert.InDelta(t, res.APY, got.APY, 1e-9)
	assert.Equal(t, res.NumberOfRebalances, got.NumberOfRebalances)
	assert.True(t, res.StartDate.Equal(got.StartDate))

	var cfg backtest.Config
	require.NoError(t, json.Unmarshal(got.ConfigJSON, &cfg))
	assert.Equal(t, strategy.YieldFarming, cfg.Strategy)
}

func TestSQLiteStore_Days(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	res := sampleResult(t, strategy.ConcentratedLiquidity)
	require.NoError(t, store.Save(ctx, res, SaveOptions{}))

	days, err := store.Days(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, days, len(res.DailyPerformance))

	for i, d := range days {
		assert.Equal(t, i, d.Day)
		assert.InDelta(t, res.DailyPerformance[i].PortfolioValue, d.PortfolioValue, 1e-9)
		assert.Equal(t, res.DailyPerformance[i].Rebalanced, d.Rebalanced)
	}

	var pos strategy.RangePosition
	require.NoError(t, json.Unmarshal(days[0].Position, &pos))
	assert.Less(t, pos.LowerPrice, pos.UpperPrice)
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, id := range []strategy.ID{strategy.StableMax, strategy.Arbitrage, strategy.DeltaNeutral} {
		created := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return created }

		res := sampleResult(t, id)
		require.NoError(t, store.Save(ctx, res, SaveOptions{}))
		ids = append(ids, res.RunID)
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[1], runs[1].RunID)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(2*time.Hour)))
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Days(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteStore_RejectsDuplicateRun(t *testing.T) {
	store := newSQLite(t)
	ctx := context.Background()
	res := sampleResult(t, strategy.StableMax)

	require.NoError(t, store.Save(ctx, res, SaveOptions{}))
	assert.Error(t, store.Save(ctx, res, SaveOptions{}))

	days, err := store.Days(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, days, len(res.DailyPerformance), "failed save must roll back")
}

func TestSaveRequiresRunID(t *testing.T) {
	store := newSQLite(t)
	err := store.Save(context.Background(), &backtest.Result{}, SaveOptions{})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var store Store = Nop{}
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, &backtest.Result{RunID: "x"}, SaveOptions{}))
	runs, err := store.List(ctx, 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Close())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, &config.Config{Archive: config.ArchiveConfig{Driver: "none"}})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, store)

	store, err = Open(ctx, &config.Config{Archive: config.ArchiveConfig{Driver: "sqlite", SQLitePath: ":memory:"}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, &config.Config{Archive: config.ArchiveConfig{Driver: "mongo"}})
	assert.Error(t, err)
}

func TestPostgresStore_Integration(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, &config.Config{Database: config.DatabaseConfig{URL: url}})
	require.NoError(t, err)

	store, err := NewPostgresStore(ctx, db)
	require.NoError(t, err)
	defer store.Close()

	res := sampleResult(t, strategy.ConcentratedLiquidityOptimized)
	require.NoError(t, store.Save(ctx, res, SaveOptions{PlanHash: "integration"}))

	got, err := store.Get(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, "integration", got.PlanHash)

	days, err := store.Days(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, days, len(res.DailyPerformance))

	_, err = store.Get(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}
