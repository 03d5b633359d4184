package risk

// VaRResult holds value-at-risk figures. Losses are positive: VaR 5 means
// a 5% loss is not exceeded at the given confidence.
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// Distribution summarizes a sample of outcomes, e.g. the APY of every run
// in a seed sweep.
type Distribution struct {
	Count       int             `json:"count"`
	Mean        float64         `json:"mean"`
	StdDev      float64         `json:"std_dev"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Percentiles map[int]float64 `json:"percentiles"`
	VaR95       float64         `json:"var_95"`
	CVaR95      float64         `json:"cvar_95"`
	VaR99       float64         `json:"var_99"`
	CVaR99      float64         `json:"cvar_99"`
}

// SummaryPercentiles are the percentiles every Distribution reports.
var SummaryPercentiles = []int{5, 25, 50, 75, 95}

// BootstrapConfig configures a historical bootstrap of daily returns.
type BootstrapConfig struct {
	NumSimulations int   `json:"num_simulations"`
	HoldingPeriod  int   `json:"holding_period"`
	Seed           int64 `json:"seed"` // 0 picks a time-based seed
	MinSamples     int   `json:"min_samples"`
}

// DefaultBootstrapConfig resamples 30-day paths 10,000 times.
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		NumSimulations: 10000,
		HoldingPeriod:  30,
		MinSamples:     10,
	}
}

// BootstrapResult is the distribution of simulated holding-period returns
// in percent.
type BootstrapResult struct {
	RunID            string          `json:"run_id"`
	Config           BootstrapConfig `json:"config"`
	InputSampleCount int             `json:"input_sample_count"`
	Returns          Distribution    `json:"returns"`
}
