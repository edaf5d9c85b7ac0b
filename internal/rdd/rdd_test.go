package rdd

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/filmlab/boxrdd/internal/model"
)

func TestFitWLSRecoversLine(t *testing.T) {
	// y = 2 + 3x, exact
	n := 50
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		X.Set(i, 0, 1)
		X.Set(i, 1, x)
		y[i] = 2 + 3*x
	}
	fit, err := fitWLS(X, y, onesLike(n))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, fit.coef[0], 1e-9)
	assert.InDelta(t, 3.0, fit.coef[1], 1e-9)
	assert.InDelta(t, 1.0, fit.r2, 1e-9)
}

func TestFitWLSWeightsMatter(t *testing.T) {
	// two clusters disagree on the level; weights decide the fit
	X := mat.NewDense(6, 1, []float64{1, 1, 1, 1, 1, 1})
	y := []float64{0, 0, 0, 10, 10, 10}

	heavy := []float64{1, 1, 1, 100, 100, 100}
	fit, err := fitWLS(X, y, heavy)
	require.NoError(t, err)
	assert.Greater(t, fit.coef[0], 9.0)

	light := []float64{100, 100, 100, 1, 1, 1}
	fit, err = fitWLS(X, y, light)
	require.NoError(t, err)
	assert.Less(t, fit.coef[0], 1.0)
}

func TestFitWLSTooFewObservations(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 0, 1, 1})
	_, err := fitWLS(X, []float64{1, 2}, []float64{1, 1})
	require.Error(t, err)
}

// synthetic sharp design: jump of tau at zero over a gentle slope with
// a deterministic wiggle so variances are nonzero.
func syntheticRD(tau float64) (x, y []float64) {
	for i := -40; i <= 40; i++ {
		xi := float64(i)
		yi := 15 + 0.01*xi + 0.05*math.Sin(float64(i)*1.7)
		if xi >= 0 {
			yi += tau
		}
		x = append(x, xi)
		y = append(y, yi)
	}
	return x, y
}

func TestSharpEstimateRecoversJump(t *testing.T) {
	x, y := syntheticRD(0.5)
	res, err := sharpEstimate(x, y, nil, 20)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, res.Conventional.Coef, 0.1)
	assert.InDelta(t, 0.5, res.BiasCorrected.Coef, 0.1)
	assert.Equal(t, 20.0, res.Bandwidth)
	assert.Greater(t, res.NLeft, 3)
	assert.Greater(t, res.NRight, 3)
}

func TestSharpEstimateNoJump(t *testing.T) {
	x, y := syntheticRD(0)
	res, err := sharpEstimate(x, y, nil, 20)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.BiasCorrected.Coef, 0.1)
}

func TestSharpEstimateRejectsBadBandwidth(t *testing.T) {
	x, y := syntheticRD(0.5)
	_, err := sharpEstimate(x, y, nil, 0)
	require.Error(t, err)

	// bandwidth so narrow one side empties out
	_, err = sharpEstimate([]float64{-50, -40, -30, 1, 2, 3, 4}, []float64{1, 2, 3, 4, 5, 6, 7}, nil, 5)
	require.Error(t, err)
}

func TestIKBandwidth(t *testing.T) {
	x, y := syntheticRD(0.5)
	h, err := ikBandwidth(x, y)
	require.NoError(t, err)
	assert.Greater(t, h, 0.0)
	assert.Less(t, h, 100.0)
}

func TestIKBandwidthTooFewObservations(t *testing.T) {
	_, err := ikBandwidth([]float64{-1, 0, 1}, []float64{1, 2, 3})
	require.Error(t, err)
}

func TestInference(t *testing.T) {
	est := inference(1.96, 1.0)
	assert.InDelta(t, 0.05, est.P, 0.001)
	assert.InDelta(t, 0.0, est.CILower, 0.01)

	est = inference(1.0, 0)
	assert.True(t, math.IsNaN(est.P))
}

func syntheticFilms(n int) []model.MergedFilm {
	films := make([]model.MergedFilm, 0, n)
	ratings := []string{"PG-13", "R"}
	for i := 0; i < n; i++ {
		score := 30 + i%61 // 30..90
		centered := score - 60
		logOpen := 15 + 0.01*float64(centered) + 0.05*math.Sin(float64(i)*1.3)
		if centered >= 0 {
			logOpen += 0.4
		}
		treat := 0
		if centered >= 0 {
			treat = 1
		}
		films = append(films, model.MergedFilm{
			ReleaseID:        "rl" + string(rune('a'+i%26)) + string(rune('0'+i%10)),
			Title:            "Film",
			ReleaseYear:      model.IntPtr(2022 + i%2),
			MPAARating:       ratings[i%2],
			CriticScore:      model.IntPtr(score),
			AudienceScore:    model.IntPtr(score),
			CriticCentered:   model.IntPtr(centered),
			AudienceCentered: model.IntPtr(centered),
			FreshCritic:      model.IntPtr(treat),
			FreshAudience:    model.IntPtr(treat),
			LogOpeningGross:  model.Float64Ptr(logOpen),
			LogTotalGross:    model.Float64Ptr(logOpen + 1),
			LogTheaters:      model.Float64Ptr(7 + 0.01*float64(i%20)),
			LogBudget:        model.Float64Ptr(17 + 0.01*float64(i%30)),
		})
	}
	return films
}

func testConfig() Config {
	return Config{
		BandwidthSelect:    "fixed",
		FixedBandwidth:     20,
		BandwidthGrid:      []float64{0.5, 1.0, 2.0},
		ScoreThreshold:     60,
		StartDate:          time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		MinOpeningTheaters: 600,
	}
}

func TestRunAll(t *testing.T) {
	films := syntheticFilms(400)
	rows := RunAll(films, testConfig())

	// per cell: RD no/with controls, two grid rows, four OLS rows
	assert.Len(t, rows, 4*8)

	for _, r := range rows {
		require.Empty(t, r.Error, "%s %s %s", r.Score, r.Outcome, r.Method)
		require.NotNil(t, r.Coef, "%s %s %s", r.Score, r.Outcome, r.Method)
		// the synthetic jump is 0.4; every spec should land near it
		assert.InDelta(t, 0.4, *r.Coef, 0.25, "%s %s %s controls=%s", r.Score, r.Outcome, r.Method, r.Controls)
	}
}

func TestRunAllDeterministic(t *testing.T) {
	films := syntheticFilms(200)
	a := RunAll(films, testConfig())
	b := RunAll(films, testConfig())
	assert.Equal(t, a, b)
}

func TestRunAllListwiseExclusion(t *testing.T) {
	films := syntheticFilms(100)
	// null out scores for some films; they drop from cells, not the data
	for i := 0; i < 20; i++ {
		films[i].CriticScore = nil
		films[i].CriticCentered = nil
		films[i].FreshCritic = nil
	}
	rows := RunAll(films, testConfig())
	var criticN, audienceN int
	for _, r := range rows {
		if r.Method == "OLS Linear" && r.Controls == "No" && r.Outcome == "Log Opening Gross" {
			if r.Score == "Critic" {
				criticN = r.N
			} else {
				audienceN = r.N
			}
		}
	}
	assert.Equal(t, 80, criticN)
	assert.Equal(t, 100, audienceN)
}

func TestRunAllExcludesInTheatersForTotalGross(t *testing.T) {
	films := syntheticFilms(100)
	for i := 0; i < 30; i++ {
		films[i].InTheaters = true
	}
	rows := RunAll(films, testConfig())
	for _, r := range rows {
		if r.Method == "OLS Linear" && r.Controls == "No" {
			if r.Outcome == "Log Total Gross" {
				assert.Equal(t, 70, r.N)
			} else {
				assert.Equal(t, 100, r.N)
			}
		}
	}
}

func TestFormatText(t *testing.T) {
	films := syntheticFilms(200)
	cfg := testConfig()
	rows := RunAll(films, cfg)
	out := FormatText(rows, cfg)

	assert.Contains(t, out, "RDD ESTIMATION RESULTS")
	assert.Contains(t, out, "PANEL: CRITIC SCORE")
	assert.Contains(t, out, "PANEL: AUDIENCE SCORE")
	assert.Contains(t, out, "Log Opening Gross")
	assert.Contains(t, out, "excluding movies still in theaters")
	assert.Contains(t, out, "RD Robust")
	assert.Contains(t, out, "OLS Quadratic")

	// deterministic rendering
	assert.Equal(t, out, FormatText(rows, cfg))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "***", stars(model.Float64Ptr(0.001)))
	assert.Equal(t, "**", stars(model.Float64Ptr(0.03)))
	assert.Equal(t, "*", stars(model.Float64Ptr(0.07)))
	assert.Equal(t, "", stars(model.Float64Ptr(0.5)))
	assert.Equal(t, "", stars(nil))
}
