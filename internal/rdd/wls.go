package rdd

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// wlsFit is a weighted least squares fit with an HC1 sandwich
// covariance. Unit weights give plain OLS.
type wlsFit struct {
	coef []float64
	se   []float64
	n    int
	p    int
	r2   float64
}

// fitWLS solves min Σ wᵢ(yᵢ - xᵢβ)² and returns coefficients with
// heteroskedasticity-robust standard errors.
func fitWLS(X *mat.Dense, y, w []float64) (*wlsFit, error) {
	n, p := X.Dims()
	if len(y) != n || len(w) != n {
		return nil, eris.New("rdd: design and response dimensions disagree")
	}
	if n <= p {
		return nil, eris.Errorf("rdd: %d observations for %d parameters", n, p)
	}

	// A = XᵀWX, b = XᵀWy
	wx := mat.NewDense(n, p, nil)
	wy := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			wx.Set(i, j, w[i]*X.At(i, j))
		}
		wy[i] = w[i] * y[i]
	}
	var a mat.Dense
	a.Mul(X.T(), wx)
	var b mat.VecDense
	b.MulVec(X.T(), mat.NewVecDense(n, wy))

	var ainv mat.Dense
	if err := ainv.Inverse(&a); err != nil {
		return nil, eris.Wrap(err, "rdd: singular design")
	}
	var beta mat.VecDense
	beta.MulVec(&ainv, &b)

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = beta.AtVec(j)
	}

	// residuals and weighted R²
	resid := make([]float64, n)
	var ssr, sst, sw, ybar float64
	for i := 0; i < n; i++ {
		var fitted float64
		for j := 0; j < p; j++ {
			fitted += X.At(i, j) * coef[j]
		}
		resid[i] = y[i] - fitted
		sw += w[i]
		ybar += w[i] * y[i]
	}
	ybar /= sw
	for i := 0; i < n; i++ {
		ssr += w[i] * resid[i] * resid[i]
		d := y[i] - ybar
		sst += w[i] * d * d
	}
	r2 := 0.0
	if sst > 0 {
		r2 = 1 - ssr/sst
	}

	// HC1 sandwich: A⁻¹ (Σ (wᵢeᵢ)² xᵢxᵢᵀ) A⁻¹ scaled by n/(n-p)
	u := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		s := w[i] * resid[i]
		for j := 0; j < p; j++ {
			u.Set(i, j, s*X.At(i, j))
		}
	}
	var meat mat.Dense
	meat.Mul(u.T(), u)
	var tmp, cov mat.Dense
	tmp.Mul(&ainv, &meat)
	cov.Mul(&tmp, &ainv)
	dfScale := float64(n) / float64(n-p)

	se := make([]float64, p)
	for j := 0; j < p; j++ {
		se[j] = math.Sqrt(cov.At(j, j) * dfScale)
	}

	return &wlsFit{coef: coef, se: se, n: n, p: p, r2: r2}, nil
}

func onesLike(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
