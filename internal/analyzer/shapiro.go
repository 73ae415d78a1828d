package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ShapiroWilk tests a sample for normality using Royston's approximation
// of the coefficients and of the W distribution. It accepts 3 to 5000
// values that are not all equal.
func ShapiroWilk(values []float64) (w, pValue float64, ok bool) {
	n := len(values)
	if n < 3 || n > 5000 {
		return 0, 0, false
	}

	x := sortedCopy(values)
	if x[n-1]-x[0] == 0 {
		return 0, 0, false
	}

	a := swilkCoefficients(n)

	mean := meanOf(x)
	var num, den float64
	for i, v := range x {
		num += a[i] * v
		d := v - mean
		den += d * d
	}
	w = min(1, num*num/den)

	return w, swilkPValue(w, n), true
}

// swilkCoefficients returns the antisymmetric weights a_1..a_n.
func swilkCoefficients(n int) []float64 {
	a := make([]float64, n)
	if n == 3 {
		a[0], a[2] = -math.Sqrt2/2, math.Sqrt2/2
		return a
	}

	fn := float64(n)
	m := make([]float64, n)
	var mm float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (fn + 0.25))
		mm += m[i] * m[i]
	}

	u := 1 / math.Sqrt(fn)
	poly := func(c0 float64, c ...float64) float64 {
		v, p := c0, u
		for _, ci := range c {
			v += ci * p
			p *= u
		}
		return v
	}

	rm := math.Sqrt(mm)
	an := poly(m[n-1]/rm, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056)

	if n > 5 {
		an1 := poly(m[n-2]/rm, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633)
		phi := (mm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
		for i := 2; i < n-2; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
		a[0], a[1], a[n-2], a[n-1] = -an, -an1, an1, an
		return a
	}

	phi := (mm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
	for i := 1; i < n-1; i++ {
		a[i] = m[i] / math.Sqrt(phi)
	}
	a[0], a[n-1] = -an, an
	return a
}

func swilkPValue(w float64, n int) float64 {
	fn := float64(n)

	switch {
	case n == 3:
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return max(0, min(1, p))
	case n <= 11:
		gamma := 0.459*fn - 2.273
		mu := -0.0006714*fn*fn*fn + 0.025054*fn*fn - 0.39978*fn + 0.5440
		sigma := math.Exp(-0.0020322*fn*fn*fn + 0.062767*fn*fn - 0.77857*fn + 1.3822)
		lw := gamma - math.Log(1-w)
		if lw <= 0 {
			return 0
		}
		z := (-math.Log(lw) - mu) / sigma
		return distuv.UnitNormal.Survival(z)
	default:
		ln := math.Log(fn)
		mu := 0.0038915*ln*ln*ln - 0.083751*ln*ln - 0.31082*ln - 1.5861
		sigma := math.Exp(0.0030302*ln*ln - 0.082676*ln - 0.4803)
		if w >= 1 {
			return 1
		}
		z := (math.Log(1-w) - mu) / sigma
		return distuv.UnitNormal.Survival(z)
	}
}
