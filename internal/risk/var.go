package risk

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// CalculateVaR computes historical VaR and CVaR of values (percent returns,
// gains positive) at the given confidence.
func CalculateVaR(values []float64, confidence float64) VaRResult {
	if len(values) == 0 {
		return VaRResult{Confidence: confidence}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR is the mean loss of sorted[0..varIdx]. sorted must be
// ascending.
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}
	tail, err := stats.Mean(sorted[:varIdx+1])
	if err != nil {
		return 0
	}
	return lossOf(tail)
}

// CalculateParametricVaR assumes normally distributed returns.
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	z := NormInv(confidence)
	varValue := math.Max(z*stdDev-mean, 0)
	cvar := varValue + stdDev*NormPDF(z)/(1-confidence)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

func lossOf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return 0
}

// Summarize describes values. An empty sample returns a zero Distribution.
func Summarize(values []float64) Distribution {
	d := Distribution{Count: len(values), Percentiles: make(map[int]float64, len(SummaryPercentiles))}
	if len(values) == 0 {
		return d
	}

	data := stats.Float64Data(values)
	d.Mean, _ = data.Mean()
	d.StdDev, _ = data.StandardDeviationSample()
	if math.IsNaN(d.StdDev) {
		d.StdDev = 0
	}
	d.Min, _ = data.Min()
	d.Max, _ = data.Max()

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	for _, p := range SummaryPercentiles {
		d.Percentiles[p] = Percentile(sorted, float64(p))
	}

	v95 := CalculateVaR(values, 0.95)
	v99 := CalculateVaR(values, 0.99)
	d.VaR95, d.CVaR95 = v95.VaR, v95.CVaR
	d.VaR99, d.CVaR99 = v99.VaR, v99.CVaR
	return d
}

// NormInv is the standard normal quantile function
// (Beasley-Springer-Moro approximation).
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}

	a := []float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	b := []float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
	c := []float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	d := []float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}

	const pLow = 0.02425
	const pHigh = 1 - pLow

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// Percentile interpolates linearly between ranks of an ascending slice.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
