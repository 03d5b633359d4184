// Package runplan loads YAML batch plans: a set of backtest runs sharing
// market inputs and default parameters.
package runplan

import (
	"time"

	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/strategy"
)

// Plan is a batch of runs compared side by side.
type Plan struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Defaults Defaults `yaml:"defaults" json:"defaults"`
	Market   Market   `yaml:"market" json:"market"`
	Runs     []Run    `yaml:"runs" json:"runs"`
}

type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Defaults apply to every run that does not override them.
type Defaults struct {
	Days                int                `yaml:"days" json:"days"`
	InitialCapital      float64            `yaml:"initial_capital" json:"initial_capital"`
	FeeRate             float64            `yaml:"fee_rate" json:"fee_rate"`
	GasCostPerRebalance float64            `yaml:"gas_cost_per_rebalance" json:"gas_cost_per_rebalance"`
	RebalanceFrequency  strategy.Frequency `yaml:"rebalance_frequency" json:"rebalance_frequency"`
	Seed                int64              `yaml:"seed" json:"seed"`
}

// Market selects the series every run is simulated over.
type Market struct {
	AssetID     string `yaml:"asset_id" json:"asset_id"`
	PoolAddress string `yaml:"pool_address" json:"pool_address"`
	// Synthetic skips the network and uses the seeded generator.
	Synthetic bool `yaml:"synthetic" json:"synthetic"`
}

// Run is one entry of the plan. Nil overrides fall back to Defaults.
type Run struct {
	Name                string              `yaml:"name" json:"name"`
	Strategy            strategy.ID         `yaml:"strategy" json:"strategy"`
	InitialCapital      *float64            `yaml:"initial_capital,omitempty" json:"initial_capital,omitempty"`
	FeeRate             *float64            `yaml:"fee_rate,omitempty" json:"fee_rate,omitempty"`
	GasCostPerRebalance *float64            `yaml:"gas_cost_per_rebalance,omitempty" json:"gas_cost_per_rebalance,omitempty"`
	RebalanceFrequency  *strategy.Frequency `yaml:"rebalance_frequency,omitempty" json:"rebalance_frequency,omitempty"`
	Seed                *int64              `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// DisplayName is the run's name, or its strategy's display name.
func (r Run) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Strategy.DisplayName()
}

// Configs resolves every run against the defaults for a window ending at end.
func (p *Plan) Configs(end time.Time) []backtest.Config {
	end = end.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(p.Defaults.Days - 1))

	configs := make([]backtest.Config, len(p.Runs))
	for i, r := range p.Runs {
		cfg := backtest.Config{
			Strategy:            r.Strategy,
			StartDate:           start,
			EndDate:             end,
			InitialCapital:      p.Defaults.InitialCapital,
			RebalanceFrequency:  p.Defaults.RebalanceFrequency,
			FeeRate:             p.Defaults.FeeRate,
			GasCostPerRebalance: p.Defaults.GasCostPerRebalance,
			Seed:                p.Defaults.Seed,
		}
		if r.InitialCapital != nil {
			cfg.InitialCapital = *r.InitialCapital
		}
		if r.FeeRate != nil {
			cfg.FeeRate = *r.FeeRate
		}
		if r.GasCostPerRebalance != nil {
			cfg.GasCostPerRebalance = *r.GasCostPerRebalance
		}
		if r.RebalanceFrequency != nil {
			cfg.RebalanceFrequency = *r.RebalanceFrequency
		}
		if r.Seed != nil {
			cfg.Seed = *r.Seed
		}
		configs[i] = cfg
	}
	return configs
}

// Snapshot records exactly which plan produced a batch of results.
type Snapshot struct {
	PlanHash  string    `json:"plan_hash"`
	PlanYAML  string    `json:"plan_yaml"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}
