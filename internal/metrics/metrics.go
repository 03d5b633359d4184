// Package metrics turns a daily value series into performance statistics.
// Every function here is pure and NaN-free for empty or flat input.
package metrics

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

const (
	// RiskFreeRate is the annual risk-free rate in percentage points.
	RiskFreeRate = 4.0
	// MaxProfitFactor bounds the profit factor when no day lost money.
	MaxProfitFactor = 100.0

	daysPerYear = 365.0
)

// Point is one simulated day as the metrics see it.
type Point struct {
	Date           time.Time
	Timestamp      int64
	PortfolioValue float64
	DailyReturnPct float64
}

// DayReturn identifies a single day's return.
type DayReturn struct {
	Index     int       `json:"index"`
	Date      time.Time `json:"date"`
	ReturnPct float64   `json:"return_pct"`
}

// Summary is the aggregate statistics of a series.
type Summary struct {
	FinalValue         float64
	TotalReturn        float64
	TotalReturnPct     float64
	APY                float64
	Volatility         float64
	SharpeRatio        float64
	SortinoRatio       float64
	MaxDrawdown        float64
	MaxDrawdownPct     float64
	WinRate            float64
	ProfitFactor       float64
	AverageDailyReturn float64
	BestDay            DayReturn
	WorstDay           DayReturn
}

// Compute summarizes points against initialCapital.
func Compute(points []Point, initialCapital float64) Summary {
	s := Summary{
		FinalValue: initialCapital,
		BestDay:    DayReturn{Index: -1},
		WorstDay:   DayReturn{Index: -1},
	}
	if len(points) == 0 {
		return s
	}

	returns := make(stats.Float64Data, len(points))
	for i, p := range points {
		returns[i] = p.DailyReturnPct
	}

	s.FinalValue = points[len(points)-1].PortfolioValue
	s.TotalReturn = s.FinalValue - initialCapital
	if initialCapital > 0 {
		s.TotalReturnPct = s.TotalReturn / initialCapital * 100
	}

	s.APY = APY(s.FinalValue, initialCapital, len(points))
	s.Volatility = Volatility(returns)
	s.AverageDailyReturn, _ = stats.Mean(returns)

	excess := s.APY - RiskFreeRate
	if s.Volatility > 0 {
		s.SharpeRatio = excess / s.Volatility
	}
	if downside := DownsideDeviation(returns) * math.Sqrt(daysPerYear); downside > 0 {
		s.SortinoRatio = excess / downside
	}

	s.MaxDrawdown, s.MaxDrawdownPct = MaxDrawdown(points, initialCapital)
	s.WinRate = WinRate(returns)
	s.ProfitFactor = ProfitFactor(points, initialCapital)
	s.BestDay, s.WorstDay = extremes(points)
	return s
}

// APY annualizes the total return over numDays, in percent. A series of
// fewer than two days has no elapsed period and yields 0.
func APY(finalValue, initialCapital float64, numDays int) float64 {
	if numDays <= 1 || initialCapital <= 0 || finalValue < 0 {
		return 0
	}
	return (math.Pow(finalValue/initialCapital, daysPerYear/float64(numDays)) - 1) * 100
}

// Volatility is the annualized population standard deviation of daily
// returns (percent).
func Volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(returns)
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(daysPerYear)
}

// DownsideDeviation is sqrt(mean(min(r, 0)^2)) over all days.
func DownsideDeviation(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// RunningPeak returns the peak value seen up to each day, starting from
// initialCapital. It never decreases.
func RunningPeak(points []Point, initialCapital float64) []float64 {
	peaks := make([]float64, len(points))
	peak := initialCapital
	for i, p := range points {
		if p.PortfolioValue > peak {
			peak = p.PortfolioValue
		}
		peaks[i] = peak
	}
	return peaks
}

// MaxDrawdown returns the largest peak-to-trough decline and its percentage
// of the peak it fell from.
func MaxDrawdown(points []Point, initialCapital float64) (amount, pct float64) {
	peaks := RunningPeak(points, initialCapital)
	for i, p := range points {
		drawdown := peaks[i] - p.PortfolioValue
		if drawdown > amount {
			amount = drawdown
			if peaks[i] > 0 {
				pct = drawdown / peaks[i] * 100
			}
		}
	}
	return amount, pct
}

// WinRate is the fraction of days with a positive return.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// ProfitFactor is gross daily gains over gross daily losses, capped at
// MaxProfitFactor. It is 0 unless the series ends above initialCapital.
func ProfitFactor(points []Point, initialCapital float64) float64 {
	if len(points) == 0 || points[len(points)-1].PortfolioValue <= initialCapital {
		return 0
	}

	var gains, losses float64
	prev := initialCapital
	for _, p := range points {
		change := p.PortfolioValue - prev
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
		prev = p.PortfolioValue
	}

	if losses == 0 {
		return MaxProfitFactor
	}
	return math.Min(gains/losses, MaxProfitFactor)
}

// extremes finds the best and worst day; ties go to the earliest.
func extremes(points []Point) (best, worst DayReturn) {
	bi, wi := 0, 0
	for i, p := range points {
		if p.DailyReturnPct > points[bi].DailyReturnPct {
			bi = i
		}
		if p.DailyReturnPct < points[wi].DailyReturnPct {
			wi = i
		}
	}
	best = DayReturn{Index: bi, Date: points[bi].Date, ReturnPct: points[bi].DailyReturnPct}
	worst = DayReturn{Index: wi, Date: points[wi].Date, ReturnPct: points[wi].DailyReturnPct}
	return best, worst
}
