// Package rdd estimates the causal effect of crossing the review-score
// threshold on box office revenue with a sharp regression discontinuity
// design.
//
// Each (score, outcome) cell gets a local-polynomial estimate at a
// data-driven bandwidth plus global OLS polynomial checks, with and
// without covariates. Films missing the running variable or outcome
// drop out of a cell listwise; they stay in the dataset.
package rdd

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/model"
)

// Config holds the estimation parameters.
type Config struct {
	// BandwidthSelect is "ik" for the data-driven selector or "fixed".
	BandwidthSelect string
	FixedBandwidth  float64
	// BandwidthGrid multiplies the selected bandwidth for robustness
	// rows; 1.0 entries are skipped (that's the main estimate).
	BandwidthGrid []float64

	ScoreThreshold     int
	StartDate          time.Time
	EndDate            time.Time
	MinOpeningTheaters int64
}

// ResultRow is one estimate, flattened for the CSV artifact.
type ResultRow struct {
	Score     string   `csv:"score"`
	Outcome   string   `csv:"outcome"`
	Method    string   `csv:"method"`
	Controls  string   `csv:"controls"`
	Coef      *float64 `csv:"coef"`
	SE        *float64 `csv:"se"`
	PValue    *float64 `csv:"p_value"`
	CILower   *float64 `csv:"ci_lower"`
	CIUpper   *float64 `csv:"ci_upper"`
	Bandwidth *float64 `csv:"bandwidth"`
	NEff      *int     `csv:"n_effective"`
	N         int      `csv:"n"`
	R2        *float64 `csv:"r_squared"`
	Error     string   `csv:"error"`
}

type sample struct {
	y []float64 // outcome
	x []float64 // centered running variable
	// covariate columns, aligned with y and x; nil when a film in the
	// sample is missing any control
	covs [][]float64
}

// RunAll runs every estimation cell over the merged dataset and returns
// result rows in a fixed order so reruns are reproducible.
func RunAll(films []model.MergedFilm, cfg Config) []ResultRow {
	covCols := controlColumns(films)

	scores := []struct {
		label   string
		running func(model.MergedFilm) *int
	}{
		{"Critic", func(f model.MergedFilm) *int { return f.CriticCentered }},
		{"Audience", func(f model.MergedFilm) *int { return f.AudienceCentered }},
	}
	outcomes := []struct {
		label            string
		value            func(model.MergedFilm) *float64
		excludeInTheater bool
	}{
		{"Log Opening Gross", func(f model.MergedFilm) *float64 { return f.LogOpeningGross }, false},
		{"Log Total Gross", func(f model.MergedFilm) *float64 { return f.LogTotalGross }, true},
	}

	var rows []ResultRow
	for _, sc := range scores {
		for _, out := range outcomes {
			full := buildSample(films, sc.running, out.value, out.excludeInTheater, nil)
			ctrl := buildSample(films, sc.running, out.value, out.excludeInTheater, covCols)

			rows = append(rows, runRDCell(sc.label, out.label, full, ctrl, cfg)...)
			rows = append(rows, runOLSCell(sc.label, out.label, full, ctrl)...)
		}
	}
	zap.L().Info("estimation complete", zap.Int("rows", len(rows)))
	return rows
}

func runRDCell(score, outcome string, full, ctrl sample, cfg Config) []ResultRow {
	h, hErr := selectBandwidth(full, cfg)

	var rows []ResultRow
	rows = append(rows, rdRow(score, outcome, "RD Robust", "No", full, h, hErr))
	rows = append(rows, rdRow(score, outcome, "RD Robust", "Yes", ctrl, h, hErr))

	for _, mult := range cfg.BandwidthGrid {
		if mult == 1.0 || hErr != nil {
			continue
		}
		method := fmt.Sprintf("RD Robust (%.2fx bw)", mult)
		rows = append(rows, rdRow(score, outcome, method, "No", full, h*mult, nil))
	}
	return rows
}

func rdRow(score, outcome, method, controls string, s sample, h float64, hErr error) ResultRow {
	row := ResultRow{Score: score, Outcome: outcome, Method: method, Controls: controls, N: len(s.y)}
	if hErr != nil {
		row.Error = hErr.Error()
		return row
	}
	res, err := sharpEstimate(s.x, s.y, s.covs, h)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	fillEstimate(&row, res.BiasCorrected)
	row.Bandwidth = model.Float64Ptr(res.Bandwidth)
	row.NEff = model.IntPtr(res.NLeft + res.NRight)
	return row
}

func runOLSCell(score, outcome string, full, ctrl sample) []ResultRow {
	var rows []ResultRow
	for _, spec := range []struct {
		method   string
		order    int
		controls string
		s        sample
	}{
		{"OLS Linear", 1, "No", full},
		{"OLS Linear", 1, "Yes", ctrl},
		{"OLS Quadratic", 2, "No", full},
		{"OLS Quadratic", 2, "Yes", ctrl},
	} {
		row := ResultRow{Score: score, Outcome: outcome, Method: spec.method, Controls: spec.controls, N: len(spec.s.y)}
		est, r2, err := globalOLS(spec.s, spec.order)
		if err != nil {
			row.Error = err.Error()
		} else {
			fillEstimate(&row, est)
			row.R2 = model.Float64Ptr(r2)
		}
		rows = append(rows, row)
	}
	return rows
}

// globalOLS fits the parametric check over the full score range: unit
// weights, polynomial of the given order interacted with treatment.
func globalOLS(s sample, order int) (Estimate, float64, error) {
	if len(s.y) == 0 {
		return Estimate{}, 0, fmt.Errorf("empty estimation sample")
	}
	idx := make([]int, len(s.y))
	for i := range idx {
		idx[i] = i
	}
	est, r2, err := globalFit(s.x, s.y, s.covs, idx, order)
	if err != nil {
		return Estimate{}, 0, err
	}
	return est, r2, nil
}

func globalFit(x, y []float64, covs [][]float64, idx []int, order int) (Estimate, float64, error) {
	X := newDesign(x, covs, idx, order)
	ys := make([]float64, len(idx))
	for r, i := range idx {
		ys[r] = y[i]
	}
	fitRes, err := fitWLS(X, ys, onesLike(len(idx)))
	if err != nil {
		return Estimate{}, 0, err
	}
	return inference(fitRes.coef[1], fitRes.se[1]), fitRes.r2, nil
}

func selectBandwidth(s sample, cfg Config) (float64, error) {
	if cfg.BandwidthSelect != "ik" {
		if cfg.FixedBandwidth <= 0 {
			return 0, fmt.Errorf("fixed bandwidth not set")
		}
		return cfg.FixedBandwidth, nil
	}
	h, err := ikBandwidth(s.x, s.y)
	if err != nil {
		if cfg.FixedBandwidth > 0 {
			zap.L().Warn("bandwidth selection failed, using fixed fallback",
				zap.Float64("fixed", cfg.FixedBandwidth), zap.Error(err))
			return cfg.FixedBandwidth, nil
		}
		return 0, err
	}
	return h, nil
}

func fillEstimate(row *ResultRow, est Estimate) {
	row.Coef = model.Float64Ptr(est.Coef)
	row.SE = model.Float64Ptr(est.SE)
	if !math.IsNaN(est.P) {
		row.PValue = model.Float64Ptr(est.P)
		row.CILower = model.Float64Ptr(est.CILower)
		row.CIUpper = model.Float64Ptr(est.CIUpper)
	}
}

// buildSample assembles one estimation cell's arrays. A film enters
// only with a non-null running variable and outcome, and, when covCols
// is set, non-null values for every control.
func buildSample(films []model.MergedFilm, running func(model.MergedFilm) *int, outcome func(model.MergedFilm) *float64, excludeInTheater bool, covCols []controlColumn) sample {
	var s sample
	if covCols != nil {
		s.covs = make([][]float64, len(covCols))
	}

	for _, f := range films {
		r := running(f)
		o := outcome(f)
		if r == nil || o == nil {
			continue
		}
		if excludeInTheater && f.InTheaters {
			continue
		}
		if covCols != nil && (f.LogBudget == nil || f.LogTheaters == nil) {
			continue
		}
		s.x = append(s.x, float64(*r))
		s.y = append(s.y, *o)
		for ci, col := range covCols {
			s.covs[ci] = append(s.covs[ci], col.value(f))
		}
	}
	return s
}

// controlColumn is one covariate: the two log controls plus one-hot
// rating and year dummies.
type controlColumn struct {
	name  string
	value func(model.MergedFilm) float64
}

// controlColumns derives the covariate set from the data: log budget,
// log theaters, rating dummies (G as the reference level) and year
// dummies (earliest year as reference).
func controlColumns(films []model.MergedFilm) []controlColumn {
	cols := []controlColumn{
		{"log_budget", func(f model.MergedFilm) float64 { return deref(f.LogBudget) }},
		{"log_theaters", func(f model.MergedFilm) float64 { return deref(f.LogTheaters) }},
	}

	ratings := map[string]bool{}
	years := map[int]bool{}
	for _, f := range films {
		if f.MPAARating != "" {
			ratings[f.MPAARating] = true
		}
		if f.ReleaseYear != nil {
			years[*f.ReleaseYear] = true
		}
	}

	var ratingList []string
	for r := range ratings {
		ratingList = append(ratingList, r)
	}
	sort.Strings(ratingList)
	// G is the reference level; without G releases the first rating
	// stands in, so the dummies never span the intercept
	ref := "G"
	if !ratings[ref] && len(ratingList) > 0 {
		ref = ratingList[0]
	}
	for _, r := range ratingList {
		if r == ref {
			continue
		}
		cols = append(cols, controlColumn{
			name: "mpaa_" + r,
			value: func(f model.MergedFilm) float64 {
				if f.MPAARating == r {
					return 1
				}
				return 0
			},
		})
	}

	var yearList []int
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)
	if len(yearList) > 1 {
		for _, y := range yearList[1:] {
			cols = append(cols, controlColumn{
				name: fmt.Sprintf("year_%d", y),
				value: func(f model.MergedFilm) float64 {
					if f.ReleaseYear != nil && *f.ReleaseYear == y {
						return 1
					}
					return 0
				},
			})
		}
	}
	return cols
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

