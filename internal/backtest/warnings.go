package backtest

import (
	"fmt"

	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/strategy"
)

// Warning codes for data-quality issues that do not stop a run.
const (
	WarnPoolSeriesShort   = "pool_series_short"
	WarnPoolSeriesMissing = "pool_series_missing"
	WarnZeroPoolLiquidity = "zero_pool_liquidity"
	WarnFlatReturns       = "flat_returns"
)

// Warning flags a data-quality issue found during a run.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// seriesWarnings checks the pool series of a strategy that reads one.
func seriesWarnings(id strategy.ID, prices []market.PricePoint, pools []market.PoolSnapshot) []Warning {
	if len(prices) == 0 || !id.UsesPool() {
		return nil
	}

	var warnings []Warning
	switch {
	case len(pools) == 0:
		warnings = append(warnings, Warning{
			Code:    WarnPoolSeriesMissing,
			Message: "no pool series; pool fees accrue as zero",
		})
	case len(pools) < len(prices):
		warnings = append(warnings, Warning{
			Code:    WarnPoolSeriesShort,
			Message: fmt.Sprintf("pool series has %d days for %d prices; last snapshot reused", len(pools), len(prices)),
		})
	}

	zero := 0
	for i := range prices {
		if pool, _ := market.PoolAt(pools, i); pool != nil && pool.Liquidity <= 0 {
			zero++
		}
	}
	if zero > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnZeroPoolLiquidity,
			Message: fmt.Sprintf("%d days have zero pool liquidity; fees accrue as zero", zero),
		})
	}
	return warnings
}

func flatReturns(records []DailyRecord) (Warning, bool) {
	if len(records) < 2 {
		return Warning{}, false
	}
	for _, r := range records[1:] {
		if r.DailyReturnPct != 0 {
			return Warning{}, false
		}
	}
	return Warning{
		Code:    WarnFlatReturns,
		Message: "every daily return is zero; ratios are reported as 0",
	}, true
}
