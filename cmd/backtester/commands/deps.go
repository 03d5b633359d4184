package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/yielddelta/backtester/internal/archive"
	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/pkg/config"
	"github.com/yielddelta/backtester/pkg/httputil"
	"github.com/yielddelta/backtester/pkg/logger"
	rcache "github.com/yielddelta/backtester/pkg/redis"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	market *market.Service
	engine *backtest.Engine
	redis  *rcache.Client
}

// appOptions control how the market service is assembled.
type appOptions struct {
	// Synthetic skips every network source.
	Synthetic bool
	// Seed seeds the synthetic generator. 0 uses the configured seed.
	Seed int64
}

// newApp loads config and wires the logger, market service and engine.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Series cache: Redis when enabled, otherwise in memory
	var cache market.Cache = market.NewMemoryCache(cfg.Market.CacheTTL, nil)
	if cfg.Redis.Enabled {
		rc, err := rcache.New(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, caching series in memory")
		} else {
			a.redis = rc
			cache = market.NewRedisCache(rc, cfg.Market.CacheTTL)
		}
	}

	// 4. Market service
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Backtest.Seed
	}
	serviceOpts := []market.ServiceOption{market.WithCache(cache)}
	if !opts.Synthetic {
		httpClient := httputil.New(cfg, log)
		serviceOpts = append(serviceOpts,
			market.WithPriceSources(
				market.NewCoinGeckoClient(httpClient, cfg.Market.CoinGeckoBaseURL, log),
				market.NewHistoryPageClient(httpClient, cfg.Market.CoinGeckoWebURL, log),
			),
			market.WithPoolSource(market.NewSubgraphClient(httpClient, cfg.Market.SubgraphURL, log)),
		)
	}
	a.market = market.NewService(market.NewGenerator(seed), log, serviceOpts...)

	// 5. Engine
	a.engine = backtest.NewEngine(log)

	return a, nil
}

// Close releases connections opened by newApp.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// openStore opens the configured archive. force falls back to SQLite when
// the archive is disabled.
func (a *app) openStore(ctx context.Context, force bool) (archive.Store, error) {
	cfg := *a.cfg
	if force && (cfg.Archive.Driver == "" || cfg.Archive.Driver == "none") {
		cfg.Archive.Driver = "sqlite"
		a.log.WithField("path", cfg.Archive.SQLitePath).Info("Archive disabled, saving to SQLite")
	}
	return archive.Open(ctx, &cfg)
}

// series fetches days of prices and, when withPool is set, the pool days
// covering the same window.
func (a *app) series(ctx context.Context, asset, pool string, days int, withPool bool) ([]market.PricePoint, []market.PoolSnapshot, error) {
	prices, err := a.market.FetchPrices(ctx, asset, days)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch prices: %w", err)
	}
	if !withPool || len(prices) == 0 {
		return prices, nil, nil
	}

	start := prices[0].Date
	end := prices[len(prices)-1].Date
	pools, err := a.market.FetchPoolData(ctx, pool, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch pool data: %w", err)
	}
	return prices, pools, nil
}

// window returns the first and last date of prices, or now for an empty
// series.
func window(prices []market.PricePoint) (time.Time, time.Time) {
	if len(prices) == 0 {
		now := time.Now().UTC()
		return now, now
	}
	return prices[0].Date, prices[len(prices)-1].Date
}
