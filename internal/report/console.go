// Package report renders backtest results for people and for files.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/yielddelta/backtester/internal/archive"
	"github.com/yielddelta/backtester/internal/backtest"
	"github.com/yielddelta/backtester/internal/market"
	"github.com/yielddelta/backtester/internal/risk"
)

const (
	dateLayout = "2006-01-02"
	ruleWidth  = 80
)

// Console writes reports as text tables.
type Console struct {
	out io.Writer
}

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) rule(ch string) {
	fmt.Fprintln(c.out, strings.Repeat(ch, ruleWidth))
}

func (c *Console) section(title string) {
	fmt.Fprintf(c.out, "\n%s\n", title)
	c.rule("-")
}

// PrintResult prints the full report of one run.
func (c *Console) PrintResult(r *backtest.Result) {
	fmt.Fprintln(c.out)
	c.rule("=")
	fmt.Fprintf(c.out, "📈 %s Strategy - Backtest Results\n", r.Strategy.DisplayName())
	c.rule("=")
	fmt.Fprintf(c.out, "Period: %s ~ %s (%d days)  Seed: %d  Run: %s\n",
		r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout),
		len(r.DailyPerformance), r.Seed, r.RunID)

	c.section("📊 PERFORMANCE METRICS")
	c.pairs([][2]string{
		{"Initial Capital", money(r.InitialCapital)},
		{"Final Value", money(r.FinalValue)},
		{"Total Return", fmt.Sprintf("%s (%s)", money(r.TotalReturn), pct(r.TotalReturnPct))},
		{"APY", pct(r.APY)},
		{"Average Daily Return", fmt.Sprintf("%.4f%%", r.AverageDailyReturn)},
	})

	c.section("📉 RISK METRICS")
	c.pairs([][2]string{
		{"Sharpe Ratio", fmt.Sprintf("%.2f", r.SharpeRatio)},
		{"Sortino Ratio", fmt.Sprintf("%.2f", r.SortinoRatio)},
		{"Volatility (Annual)", pct(r.Volatility)},
		{"Max Drawdown", fmt.Sprintf("%s (%s)", money(r.MaxDrawdown), pct(r.MaxDrawdownPct))},
	})

	c.section("💰 REVENUE & COSTS")
	c.pairs([][2]string{
		{"Total Fees Earned", money(r.TotalFeesEarned)},
		{"Total Gas Spent", money(r.TotalGasSpent)},
		{"Impermanent Loss", money(math.Abs(r.TotalImpermanentLoss))},
		{"Net Profit", money(r.NetProfit())},
	})

	c.section("🎯 TRADING STATS")
	c.pairs([][2]string{
		{"Win Rate", pct(r.WinRate * 100)},
		{"Profit Factor", fmt.Sprintf("%.2f", r.ProfitFactor)},
		{"Rebalances", fmt.Sprintf("%d", r.NumberOfRebalances)},
		{"Best Day", dayLabel(r.BestDay.Index, r.BestDay.Date.Format(dateLayout), r.BestDay.ReturnPct)},
		{"Worst Day", dayLabel(r.WorstDay.Index, r.WorstDay.Date.Format(dateLayout), r.WorstDay.ReturnPct)},
	})

	if len(r.Warnings) > 0 {
		c.section("⚠️  DATA WARNINGS")
		for _, w := range r.Warnings {
			fmt.Fprintf(c.out, "  [%s] %s\n", w.Code, w.Message)
		}
	}

	c.PrintAPYCheck(CheckAPY(r))
}

// PrintAPYCheck prints the APY validation block.
func (c *Console) PrintAPYCheck(check APYCheck) {
	c.section("🎯 APY VALIDATION")
	status := "⚠️  REVIEW NEEDED"
	if check.Pass {
		status = "✅ PASS"
	}
	fmt.Fprintf(c.out, "Target APY:   %.2f%%\n", check.Target)
	fmt.Fprintf(c.out, "Actual APY:   %.2f%%\n", check.Actual)
	fmt.Fprintf(c.out, "Difference:   %+.2f%%\n", check.Difference)
	fmt.Fprintf(c.out, "Status:       %s\n", status)
	c.rule("=")
}

func (c *Console) pairs(rows [][2]string) {
	table := tablewriter.NewWriter(c.out)
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	table.Render()
}

// PrintComparison prints runs side by side, one column per run.
// labels may be nil; the strategy display name is used then.
func (c *Console) PrintComparison(results []*backtest.Result, labels []string) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "No runs to compare")
		return
	}

	fmt.Fprintln(c.out)
	c.rule("=")
	fmt.Fprintln(c.out, "📊 STRATEGY COMPARISON")
	c.rule("=")

	header := []interface{}{"Metric"}
	for i, r := range results {
		if i < len(labels) && labels[i] != "" {
			header = append(header, labels[i])
		} else {
			header = append(header, r.Strategy.DisplayName())
		}
	}

	rows := []struct {
		name string
		cell func(r *backtest.Result) string
	}{
		{"APY", func(r *backtest.Result) string { return pct(r.APY) }},
		{"Sharpe Ratio", func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.SharpeRatio) }},
		{"Sortino Ratio", func(r *backtest.Result) string { return fmt.Sprintf("%.2f", r.SortinoRatio) }},
		{"Max Drawdown", func(r *backtest.Result) string { return pct(r.MaxDrawdownPct) }},
		{"Win Rate", func(r *backtest.Result) string { return pct(r.WinRate * 100) }},
		{"Total Return", func(r *backtest.Result) string { return money(r.TotalReturn) }},
		{"Net Profit", func(r *backtest.Result) string { return money(r.NetProfit()) }},
		{"Rebalances", func(r *backtest.Result) string { return fmt.Sprintf("%d", r.NumberOfRebalances) }},
		{"APY Check", func(r *backtest.Result) string {
			if CheckAPY(r).Pass {
				return "PASS"
			}
			return "REVIEW"
		}},
	}

	table := tablewriter.NewWriter(c.out)
	table.Header(header...)
	for _, row := range rows {
		line := []interface{}{row.name}
		for _, r := range results {
			line = append(line, row.cell(r))
		}
		table.Append(line...)
	}
	table.Render()
}

// PrintSweep prints the spread of outcomes across seeds.
func (c *Console) PrintSweep(s *backtest.SweepResult) {
	fmt.Fprintln(c.out)
	c.rule("=")
	fmt.Fprintf(c.out, "🎲 SEED SWEEP - %s (%d runs, seeds %d..%d)\n",
		s.Strategy.DisplayName(), len(s.Runs), s.BaseSeed, s.BaseSeed+int64(len(s.Runs))-1)
	c.rule("=")

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Mean", "StdDev", "Min", "P5", "P50", "P95", "Max")
	table.Append(distributionRow("APY %", s.APY)...)
	table.Append(distributionRow("Final Value", s.FinalValue)...)
	table.Append(distributionRow("Max Drawdown %", s.Drawdown)...)
	table.Render()

	fmt.Fprintf(c.out, "APY VaR95: %.2f  CVaR95: %.2f  VaR99: %.2f  CVaR99: %.2f\n",
		s.APY.VaR95, s.APY.CVaR95, s.APY.VaR99, s.APY.CVaR99)
}

// PrintBootstrap prints resampled holding-period returns.
func (c *Console) PrintBootstrap(b *risk.BootstrapResult) {
	c.section(fmt.Sprintf("🔁 BOOTSTRAP - %d paths of %d days from %d daily returns",
		b.Config.NumSimulations, b.Config.HoldingPeriod, b.InputSampleCount))

	d := b.Returns
	c.pairs([][2]string{
		{"Mean Return", pct(d.Mean)},
		{"Std Dev", pct(d.StdDev)},
		{"5th Percentile", pct(d.Percentiles[5])},
		{"Median", pct(d.Percentiles[50])},
		{"95th Percentile", pct(d.Percentiles[95])},
		{"VaR 95%", pct(d.VaR95)},
		{"CVaR 95%", pct(d.CVaR95)},
		{"VaR 99%", pct(d.VaR99)},
		{"CVaR 99%", pct(d.CVaR99)},
	})
}

// PrintSeries prints the tail of a price series and its aligned pool days.
func (c *Console) PrintSeries(prices []market.PricePoint, pools []market.PoolSnapshot, last int) {
	fmt.Fprintf(c.out, "%d price points, %d pool snapshots\n", len(prices), len(pools))
	if len(prices) == 0 {
		return
	}

	start := 0
	if last > 0 && len(prices) > last {
		start = len(prices) - last
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Close", "Volume", "TVL", "Pool Volume", "Pool Fees")
	for i := start; i < len(prices); i++ {
		p := prices[i]
		tvl, vol, fees := "-", "-", "-"
		if i < len(pools) {
			tvl = money(pools[i].TVLUSD)
			vol = money(pools[i].VolumeUSD)
			fees = money(pools[i].FeesUSD)
		}
		table.Append(p.Date.Format(dateLayout), fmt.Sprintf("%.6f", p.Close), money(p.Volume), tvl, vol, fees)
	}
	table.Render()
}

// PrintHistory lists archived runs.
func (c *Console) PrintHistory(runs []archive.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "No archived runs")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Run", "Strategy", "Period", "Days", "Final", "APY", "Sharpe", "MDD", "Created")
	for _, r := range runs {
		table.Append(
			shortID(r.RunID),
			string(r.Strategy),
			fmt.Sprintf("%s ~ %s", r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout)),
			fmt.Sprintf("%d", r.Days),
			money(r.FinalValue),
			pct(r.APY),
			fmt.Sprintf("%.2f", r.SharpeRatio),
			pct(r.MaxDrawdownPct),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
}

func distributionRow(name string, d risk.Distribution) []interface{} {
	return []interface{}{
		name,
		fmt.Sprintf("%.2f", d.Mean),
		fmt.Sprintf("%.2f", d.StdDev),
		fmt.Sprintf("%.2f", d.Min),
		fmt.Sprintf("%.2f", d.Percentiles[5]),
		fmt.Sprintf("%.2f", d.Percentiles[50]),
		fmt.Sprintf("%.2f", d.Percentiles[95]),
		fmt.Sprintf("%.2f", d.Max),
	}
}

func money(v float64) string {
	if v < 0 {
		return "-$" + humanize.CommafWithDigits(-v, 2)
	}
	return "$" + humanize.CommafWithDigits(v, 2)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func dayLabel(index int, date string, ret float64) string {
	if index < 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%+.2f%%)", date, ret)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
