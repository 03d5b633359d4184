package market

import (
	"context"
	"fmt"
	"time"

	"github.com/yielddelta/backtester/pkg/logger"
	rcache "github.com/yielddelta/backtester/pkg/redis"
)

// PriceSource fetches a daily price series.
type PriceSource interface {
	FetchPrices(ctx context.Context, assetID string, days int) ([]PricePoint, error)
}

// PoolSource fetches a daily pool series.
type PoolSource interface {
	FetchPoolData(ctx context.Context, pool string, start, end time.Time) ([]PoolSnapshot, error)
}

// Provider is the interface the backtest commands depend on.
type Provider interface {
	PriceSource
	PoolSource
}

// Service chains cache, real sources and the synthetic generator.
// It never returns an empty series for a valid request.
type Service struct {
	priceSources []PriceSource
	poolSource   PoolSource
	synth        *Generator
	cache        Cache
	logger       *logger.Logger
	now          Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPriceSources sets the price sources, tried in order.
func WithPriceSources(sources ...PriceSource) ServiceOption {
	return func(s *Service) { s.priceSources = sources }
}

// WithPoolSource sets the pool source.
func WithPoolSource(source PoolSource) ServiceOption {
	return func(s *Service) { s.poolSource = source }
}

// WithCache sets the series cache.
func WithCache(cache Cache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithClock sets the clock used to anchor synthetic prices.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) { s.now = clock }
}

// NewService creates a provider. Without sources it is purely synthetic.
func NewService(gen *Generator, log *logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		synth:  gen,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPrices returns days of prices for assetID, oldest first.
func (s *Service) FetchPrices(ctx context.Context, assetID string, days int) ([]PricePoint, error) {
	if days <= 0 {
		return nil, fmt.Errorf("fetch prices %s: days must be positive, got %d", assetID, days)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"asset": assetID,
		"days":  days,
	})
	key := rcache.PriceSeriesKey(assetID, days)

	if s.cache != nil {
		series, found, err := s.cache.GetPrices(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Price cache read failed")
		} else if found && len(series) > 0 {
			log.Debug("Price series served from cache")
			return series, nil
		}
	}

	for _, src := range s.priceSources {
		series, err := src.FetchPrices(ctx, assetID, days)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).Warn("Price source failed")
			continue
		}
		if len(series) == 0 {
			continue
		}

		s.storePrices(ctx, log, key, series)
		log.WithField("count", len(series)).Info("Fetched price series")
		return series, nil
	}

	series := s.synth.Prices(s.now(), days)
	log.WithField("seed", s.synth.Seed()).Warn("Using synthetic price data")
	return series, nil
}

// FetchPoolData returns the pool's daily snapshots between start and end.
func (s *Service) FetchPoolData(ctx context.Context, pool string, start, end time.Time) ([]PoolSnapshot, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("fetch pool %s: end %s before start %s", pool, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	log := s.logger.WithField("pool", pool)
	day := 24 * time.Hour
	key := rcache.PoolSeriesKey(pool, start.Truncate(day).Unix(), end.Truncate(day).Unix())

	if s.cache != nil {
		series, found, err := s.cache.GetPools(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Pool cache read failed")
		} else if found && len(series) > 0 {
			log.Debug("Pool series served from cache")
			return series, nil
		}
	}

	if s.poolSource != nil {
		series, err := s.poolSource.FetchPoolData(ctx, pool, start, end)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.WithError(err).Warn("Pool source failed")
		case len(series) > 0:
			if s.cache != nil {
				if err := s.cache.PutPools(ctx, key, series); err != nil {
					log.WithError(err).Warn("Pool cache write failed")
				}
			}
			log.WithField("count", len(series)).Info("Fetched pool series")
			return series, nil
		}
	}

	series := s.synth.Pools(start, end)
	log.WithFields(map[string]interface{}{
		"seed":  s.synth.Seed(),
		"count": len(series),
	}).Warn("Using synthetic pool data")
	return series, nil
}

func (s *Service) storePrices(ctx context.Context, log *logger.Logger, key string, series []PricePoint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutPrices(ctx, key, series); err != nil {
		log.WithError(err).Warn("Price cache write failed")
	}
}
