package runplan

import (
	"errors"
	"fmt"

	"github.com/yielddelta/backtester/internal/strategy"
)

// ErrInvalidPlan is wrapped by every plan loading failure.
var ErrInvalidPlan = errors.New("invalid run plan")

// Plan defaults applied when a field is left out.
const (
	DefaultDays           = 90
	DefaultInitialCapital = 10000
	DefaultFeeRate        = 0.003
	DefaultGasCost        = 0.5
	DefaultAssetID        = "sei-network"

	maxDays = 365
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrInvalidPlan
}

// Warning flags a plan that is valid but probably not what was meant.
type Warning struct {
	Code    string
	Message string
}

func applyDefaults(p *Plan) {
	if p.Defaults.Days == 0 {
		p.Defaults.Days = DefaultDays
	}
	if p.Defaults.InitialCapital == 0 {
		p.Defaults.InitialCapital = DefaultInitialCapital
	}
	if p.Defaults.FeeRate == 0 {
		p.Defaults.FeeRate = DefaultFeeRate
	}
	if p.Defaults.GasCostPerRebalance == 0 {
		p.Defaults.GasCostPerRebalance = DefaultGasCost
	}
	if p.Defaults.RebalanceFrequency == "" {
		p.Defaults.RebalanceFrequency = strategy.OnThreshold
	}
	if p.Market.AssetID == "" {
		p.Market.AssetID = DefaultAssetID
	}
}

// Validate checks every field a run depends on.
func Validate(p *Plan) error {
	if p.Meta.Name == "" {
		return ValidationError{"meta.name", "required"}
	}

	d := p.Defaults
	if d.Days < 1 || d.Days > maxDays {
		return ValidationError{"defaults.days", fmt.Sprintf("must be in [1, %d]", maxDays)}
	}
	if d.InitialCapital <= 0 {
		return ValidationError{"defaults.initial_capital", "must be > 0"}
	}
	if d.FeeRate < 0 || d.FeeRate >= 1 {
		return ValidationError{"defaults.fee_rate", "must be in [0, 1)"}
	}
	if d.GasCostPerRebalance < 0 {
		return ValidationError{"defaults.gas_cost_per_rebalance", "must be >= 0"}
	}
	if !d.RebalanceFrequency.Valid() {
		return ValidationError{"defaults.rebalance_frequency", fmt.Sprintf("unknown frequency %q", d.RebalanceFrequency)}
	}

	if len(p.Runs) == 0 {
		return ValidationError{"runs", "at least one run is required"}
	}

	names := make(map[string]int, len(p.Runs))
	for i, r := range p.Runs {
		field := func(name string) string { return fmt.Sprintf("runs[%d].%s", i, name) }

		if !r.Strategy.Valid() {
			return ValidationError{field("strategy"), fmt.Sprintf("unknown strategy %q", r.Strategy)}
		}
		if r.InitialCapital != nil && *r.InitialCapital <= 0 {
			return ValidationError{field("initial_capital"), "must be > 0"}
		}
		if r.FeeRate != nil && (*r.FeeRate < 0 || *r.FeeRate >= 1) {
			return ValidationError{field("fee_rate"), "must be in [0, 1)"}
		}
		if r.GasCostPerRebalance != nil && *r.GasCostPerRebalance < 0 {
			return ValidationError{field("gas_cost_per_rebalance"), "must be >= 0"}
		}
		if r.RebalanceFrequency != nil && !r.RebalanceFrequency.Valid() {
			return ValidationError{field("rebalance_frequency"), fmt.Sprintf("unknown frequency %q", *r.RebalanceFrequency)}
		}

		name := r.DisplayName()
		if prev, ok := names[name]; ok {
			return ValidationError{field("name"), fmt.Sprintf("duplicates runs[%d]; give the runs distinct names", prev)}
		}
		names[name] = i
	}
	return nil
}

// Warn lists settings that are accepted but have no effect or are risky.
func Warn(p *Plan) []Warning {
	var warnings []Warning

	for i, r := range p.Runs {
		if r.RebalanceFrequency != nil && ignoresFrequency(r.Strategy) {
			warnings = append(warnings, Warning{
				Code:    "FREQUENCY_IGNORED",
				Message: fmt.Sprintf("runs[%d]: %s ignores rebalance_frequency", i, r.Strategy),
			})
		}
		if r.Strategy.UsesPool() && p.Market.PoolAddress == "" && !p.Market.Synthetic {
			warnings = append(warnings, Warning{
				Code:    "NO_POOL",
				Message: fmt.Sprintf("runs[%d]: %s needs pool data but market.pool_address is empty", i, r.Strategy),
			})
		}
	}

	if p.Defaults.Seed == 0 {
		warnings = append(warnings, Warning{
			Code:    "UNSEEDED",
			Message: "defaults.seed is 0; stochastic runs will not be reproducible",
		})
	}
	return warnings
}

func ignoresFrequency(id strategy.ID) bool {
	return id == strategy.Arbitrage || id == strategy.StableMax
}
