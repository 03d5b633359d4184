package risk

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientData = errors.New("insufficient data for simulation")
	ErrInvalidConfig    = errors.New("invalid bootstrap configuration")
)

// Bootstrapper resamples a daily return series into holding-period paths.
type Bootstrapper struct {
	config BootstrapConfig
	rng    *rand.Rand
}

// NewBootstrapper validates cfg and seeds the resampler.
func NewBootstrapper(cfg BootstrapConfig) (*Bootstrapper, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Bootstrapper{
		config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// ValidateConfig checks a bootstrap configuration.
func ValidateConfig(cfg BootstrapConfig) error {
	if cfg.NumSimulations < 1 {
		return fmt.Errorf("%w: num_simulations must be at least 1", ErrInvalidConfig)
	}
	if cfg.HoldingPeriod < 1 {
		return fmt.Errorf("%w: holding_period must be at least 1", ErrInvalidConfig)
	}
	if cfg.MinSamples < 0 {
		return fmt.Errorf("%w: min_samples must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Simulate draws NumSimulations paths of HoldingPeriod days from
// dailyReturnsPct with replacement and summarizes the compounded returns.
func (b *Bootstrapper) Simulate(ctx context.Context, dailyReturnsPct []float64) (*BootstrapResult, error) {
	minSamples := b.config.MinSamples
	if minSamples < 1 {
		minSamples = 1
	}
	if len(dailyReturnsPct) < minSamples {
		return nil, fmt.Errorf("%w: have %d returns, need %d", ErrInsufficientData, len(dailyReturnsPct), minSamples)
	}

	outcomes := make([]float64, b.config.NumSimulations)
	for i := range outcomes {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		growth := 1.0
		for d := 0; d < b.config.HoldingPeriod; d++ {
			growth *= 1 + dailyReturnsPct[b.rng.Intn(len(dailyReturnsPct))]/100
		}
		outcomes[i] = (growth - 1) * 100
	}

	return &BootstrapResult{
		RunID:            uuid.NewString(),
		Config:           b.config,
		InputSampleCount: len(dailyReturnsPct),
		Returns:          Summarize(outcomes),
	}, nil
}
