package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/strategy"
)

var (
	// ErrInvalidConfig is wrapped by every ValidationError.
	ErrInvalidConfig = errors.New("invalid backtest config")
	// ErrInvalidSeries is returned for prices that cannot be simulated.
	ErrInvalidSeries = errors.New("invalid price series")
)

// Config is the immutable setup of one run.
type Config struct {
	Strategy            strategy.ID        `json:"strategy" yaml:"strategy"`
	StartDate           time.Time          `json:"start_date" yaml:"start_date"`
	EndDate             time.Time          `json:"end_date" yaml:"end_date"`
	InitialCapital      float64            `json:"initial_capital" yaml:"initial_capital"`
	RebalanceFrequency  strategy.Frequency `json:"rebalance_frequency" yaml:"rebalance_frequency"`
	FeeRate             float64            `json:"fee_rate" yaml:"fee_rate"`
	GasCostPerRebalance float64            `json:"gas_cost_per_rebalance" yaml:"gas_cost_per_rebalance"`
	// Seed drives stochastic strategies. 0 picks a time-based seed.
	Seed int64 `json:"seed" yaml:"seed"`
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap exposes ErrInvalidConfig and, when set, the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// Validate returns the first problem found, as a *ValidationError.
func (c Config) Validate() error {
	if !c.Strategy.Valid() {
		return &ValidationError{
			Field:   "strategy",
			Message: fmt.Sprintf("unknown strategy %q", c.Strategy),
			Err:     strategy.ErrUnknownStrategy,
		}
	}
	if !c.RebalanceFrequency.Valid() {
		return &ValidationError{
			Field:   "rebalance_frequency",
			Message: fmt.Sprintf("unknown frequency %q", c.RebalanceFrequency),
			Err:     strategy.ErrUnknownFrequency,
		}
	}
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return &ValidationError{Field: "initial_capital", Message: "must be a positive number"}
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 || math.IsNaN(c.FeeRate) {
		return &ValidationError{Field: "fee_rate", Message: "must be in [0, 1)"}
	}
	if c.GasCostPerRebalance < 0 || math.IsNaN(c.GasCostPerRebalance) || math.IsInf(c.GasCostPerRebalance, 0) {
		return &ValidationError{Field: "gas_cost_per_rebalance", Message: "must not be negative"}
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

// validateSeries rejects prices a position cannot be opened at.
func validateSeries(prices []market.PricePoint) error {
	for i, p := range prices {
		if !(p.Close > 0) || math.IsInf(p.Close, 0) {
			return fmt.Errorf("%w: day %d has close %v", ErrInvalidSeries, i, p.Close)
		}
	}
	return nil
}
