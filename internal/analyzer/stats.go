package analyzer

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution describes a sample. Std is the population standard
// deviation; percentiles interpolate linearly between closest ranks.
type Distribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95,omitempty"`
	P99    float64 `json:"p99,omitempty"`
	Count  int     `json:"count"`
}

type CPUStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Max    float64 `json:"max"`
	// TimeAboveThreshold is the fraction of samples above the threshold.
	TimeAboveThreshold float64 `json:"time_above_threshold"`
}

// Describe summarizes values. It returns nil for an empty sample.
func Describe(values []float64) *Distribution {
	if len(values) == 0 {
		return nil
	}
	sorted := sortedCopy(values)
	mean, variance := stat.PopMeanVariance(values, nil)

	return &Distribution{
		Mean:   mean,
		Median: Percentile(sorted, 50),
		Std:    math.Sqrt(variance),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P95:    Percentile(sorted, 95),
		P99:    Percentile(sorted, 99),
		Count:  len(values),
	}
}

func describeCPU(values []float64, threshold float64) *CPUStats {
	d := Describe(values)
	if d == nil {
		return nil
	}

	above := 0
	for _, v := range values {
		if v > threshold {
			above++
		}
	}
	return &CPUStats{
		Mean:               d.Mean,
		Median:             d.Median,
		Std:                d.Std,
		Max:                d.Max,
		TimeAboveThreshold: float64(above) / float64(len(values)),
	}
}

// Percentile returns the p-th percentile (0..100) of an ascending sample,
// interpolating linearly at rank p/100*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ConfidenceInterval is the t interval of the mean at level (e.g. 0.95),
// scaled by the standard error. It needs at least two values.
func ConfidenceInterval(values []float64, level float64) (Interval, bool) {
	n := len(values)
	if n < 2 {
		return Interval{}, false
	}

	mean, std := stat.MeanStdDev(values, nil)
	sem := std / math.Sqrt(float64(n))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.5 + level/2)

	return Interval{Lower: mean - t*sem, Upper: mean + t*sem}, true
}

// TTest is Student's two-sample t-test with pooled variance. It reports
// false when both samples have zero variance or fewer than two values.
func TTest(a, b []float64) (statistic, pValue float64, ok bool) {
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return 0, 0, false
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	df := na + nb - 2
	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		return 0, 0, false
	}

	statistic = (meanA - meanB) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = min(1, 2*dist.Survival(math.Abs(statistic)))
	return statistic, pValue, true
}

func sortedCopy(values []float64) []float64 {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values) / float64(len(values))
}
