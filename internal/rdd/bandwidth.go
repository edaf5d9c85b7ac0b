package rdd

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ikBandwidth computes the Imbens-Kalyanaraman (2012) MSE-optimal
// bandwidth for a sharp RD at cutoff zero with a triangular kernel.
// Callers fall back to a fixed bandwidth when the selector degenerates
// on small or lopsided samples.
func ikBandwidth(x, y []float64) (float64, error) {
	n := len(x)
	if n != len(y) {
		return 0, eris.New("rdd: running variable and outcome lengths disagree")
	}
	if n < 20 {
		return 0, eris.Errorf("rdd: %d observations too few for bandwidth selection", n)
	}

	// Step 1: pilot bandwidth, density and conditional variances at the
	// cutoff.
	sx := stat.StdDev(x, nil)
	if sx <= 0 {
		return 0, eris.New("rdd: running variable is constant")
	}
	h1 := 1.84 * sx * math.Pow(float64(n), -0.2)

	var yl, yr []float64
	for i := range x {
		if x[i] < 0 && x[i] >= -h1 {
			yl = append(yl, y[i])
		} else if x[i] >= 0 && x[i] <= h1 {
			yr = append(yr, y[i])
		}
	}
	if len(yl) < 3 || len(yr) < 3 {
		return 0, eris.New("rdd: too few observations near the cutoff")
	}
	f0 := float64(len(yl)+len(yr)) / (2 * float64(n) * h1)
	varL := stat.Variance(yl, nil)
	varR := stat.Variance(yr, nil)

	// Step 2: third derivative from a global cubic between the side
	// medians, then second derivatives from one-sided quadratics.
	m3, err := thirdDerivative(x, y)
	if err != nil {
		return 0, err
	}

	nl, nr := sideCounts(x)
	h2l := secondStageBandwidth(varL, f0, m3, nl)
	h2r := secondStageBandwidth(varR, f0, m3, nr)

	m2l, n2l, err := secondDerivative(x, y, -h2l, 0)
	if err != nil {
		return 0, err
	}
	m2r, n2r, err := secondDerivative(x, y, 0, h2r)
	if err != nil {
		return 0, err
	}

	// Step 3: regularized MSE-optimal bandwidth. The constant 3.4375 is
	// the triangular-kernel value of C_K.
	rl := 2160 * varL / (float64(n2l) * math.Pow(h2l, 4))
	rr := 2160 * varR / (float64(n2r) * math.Pow(h2r, 4))
	denom := f0 * (math.Pow(m2r-m2l, 2) + rl + rr)
	if denom <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return 0, eris.New("rdd: degenerate bandwidth denominator")
	}

	h := 3.4375 * math.Pow((varL+varR)/denom, 0.2) * math.Pow(float64(n), -0.2)
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, eris.New("rdd: bandwidth selection degenerated")
	}
	return h, nil
}

func sideCounts(x []float64) (nl, nr int) {
	for _, v := range x {
		if v < 0 {
			nl++
		} else {
			nr++
		}
	}
	return nl, nr
}

func secondStageBandwidth(variance, f0, m3 float64, nSide int) float64 {
	num := variance / (f0 * m3 * m3)
	return 3.56 * math.Pow(num, 1.0/7.0) * math.Pow(float64(nSide), -1.0/7.0)
}

// thirdDerivative fits y ~ 1 + D + x + x² + x³ on the sample between
// the two side medians and returns 6β₃.
func thirdDerivative(x, y []float64) (float64, error) {
	var left, right []float64
	for _, v := range x {
		if v < 0 {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return 0, eris.New("rdd: no observations on one side of the cutoff")
	}
	sort.Float64s(left)
	sort.Float64s(right)
	medL := stat.Quantile(0.5, stat.Empirical, left, nil)
	medR := stat.Quantile(0.5, stat.Empirical, right, nil)

	var idx []int
	for i := range x {
		if x[i] >= medL && x[i] <= medR {
			idx = append(idx, i)
		}
	}
	if len(idx) < 6 {
		return 0, eris.New("rdd: too few observations between side medians")
	}

	X := mat.NewDense(len(idx), 5, nil)
	ys := make([]float64, len(idx))
	for r, i := range idx {
		d := 0.0
		if x[i] >= 0 {
			d = 1
		}
		X.Set(r, 0, 1)
		X.Set(r, 1, d)
		X.Set(r, 2, x[i])
		X.Set(r, 3, x[i]*x[i])
		X.Set(r, 4, x[i]*x[i]*x[i])
		ys[r] = y[i]
	}
	fit, err := fitWLS(X, ys, onesLike(len(idx)))
	if err != nil {
		return 0, err
	}
	m3 := 6 * fit.coef[4]
	if m3 == 0 {
		// flat cubic; keep the selector well-defined
		m3 = 1e-8
	}
	return m3, nil
}

// secondDerivative fits a one-sided quadratic on [lo, hi] and returns
// 2β₂ and the window count.
func secondDerivative(x, y []float64, lo, hi float64) (float64, int, error) {
	var idx []int
	for i := range x {
		in := x[i] >= lo && x[i] <= hi
		if lo < 0 {
			in = x[i] >= lo && x[i] < 0
		}
		if in {
			idx = append(idx, i)
		}
	}
	if len(idx) < 4 {
		return 0, 0, eris.Errorf("rdd: %d observations too few for curvature estimate", len(idx))
	}

	X := mat.NewDense(len(idx), 3, nil)
	ys := make([]float64, len(idx))
	for r, i := range idx {
		X.Set(r, 0, 1)
		X.Set(r, 1, x[i])
		X.Set(r, 2, x[i]*x[i])
		ys[r] = y[i]
	}
	fit, err := fitWLS(X, ys, onesLike(len(idx)))
	if err != nil {
		return 0, 0, err
	}
	return 2 * fit.coef[2], len(idx), nil
}
