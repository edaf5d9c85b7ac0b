// Package merge joins the four scraped tables into the frozen analysis
// dataset and derives the estimation variables.
//
// Joins are exact on release ID for details and review scores, and
// fuzzy on normalized title for budgets (that source has no shared
// key). Output order follows the box-office index, so unchanged inputs
// reproduce the output byte for byte.
package merge

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/parse"
	"github.com/filmlab/boxrdd/internal/title"
)

// Options holds the study parameters applied during the merge.
type Options struct {
	StartDate          time.Time
	EndDate            time.Time
	ScoreThreshold     int
	MinOpeningTheaters int64
	InTheatersDays     int
	AcceptThreshold    float64
	ReviewThreshold    float64
}

// Result is the merged dataset plus the manual-review diagnostics.
type Result struct {
	Films       []model.MergedFilm
	Diagnostics []model.Diagnostic
}

// Build merges the scraped tables, applies the study filters and
// constructs the derived variables. Films with null scores stay in the
// table; the estimator's listwise requirement excludes them later.
func Build(index []model.IndexRow, details []model.DetailRow, scores []model.ScoreRow, budgets []model.BudgetRow, opts Options) Result {
	detailByID := make(map[string]model.DetailRow, len(details))
	for _, d := range details {
		detailByID[d.ReleaseID] = d
	}
	scoreByID := make(map[string]model.ScoreRow, len(scores))
	for _, s := range scores {
		scoreByID[s.ReleaseID] = s
	}
	budgetIdx := buildBudgetIndex(budgets)

	var result Result
	dropped := struct{ date, theaters, gross int }{}

	for _, ir := range index {
		detail := detailByID[ir.ReleaseID]
		score := scoreByID[ir.ReleaseID]

		releaseDate, haveDate := resolveReleaseDate(detail.ReleaseDate, ir.ReleaseDateRaw, ir.Year)

		if !haveDate {
			zap.L().Warn("data quality", zap.Error(&model.DataQualityError{
				ReleaseID: ir.ReleaseID,
				Field:     "release_date",
				Detail:    "missing or unparseable",
			}))
			dropped.date++
			continue
		}
		// study window
		if releaseDate.Before(opts.StartDate) || releaseDate.After(opts.EndDate) {
			dropped.date++
			continue
		}
		// wide-release floor
		if detail.OpeningTheaters == nil || *detail.OpeningTheaters < opts.MinOpeningTheaters {
			dropped.theaters++
			continue
		}

		film := assembleFilm(ir, detail, score, releaseDate, opts)
		// a film with no gross from either source has nothing to explain
		if film.DomesticGross == nil {
			dropped.gross++
			continue
		}
		for _, w := range qualityWarnings(film) {
			zap.L().Warn("data quality", zap.Error(w))
		}

		bm := budgetIdx.match(ir.Title, releaseDate.Year(), opts)
		if bm.status == model.BudgetUnmatched {
			zap.L().Debug("no budget match", zap.Error(&model.MatchError{
				Title: ir.Title,
				Year:  releaseDate.Year(),
				Stage: "budget",
			}))
		}
		film.Budget = bm.budget
		film.BudgetMatchTitle = bm.title
		film.BudgetMatchScore = bm.score
		film.BudgetMatchStatus = bm.status
		if film.Budget != nil && *film.Budget > 0 {
			film.LogBudget = model.Float64Ptr(math.Log(float64(*film.Budget)))
		}

		result.Films = append(result.Films, film)
		result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
			ReleaseID:         film.ReleaseID,
			Title:             film.Title,
			ReleaseYear:       film.ReleaseYear,
			CriticScore:       film.CriticScore,
			AudienceScore:     film.AudienceScore,
			ReviewMatchMethod: film.ReviewMatchMethod,
			ReviewURL:         score.URL,
			ReviewPageTitle:   score.PageTitle,
			BudgetMatchTitle:  film.BudgetMatchTitle,
			BudgetMatchScore:  film.BudgetMatchScore,
			BudgetMatchStatus: film.BudgetMatchStatus,
			Budget:            film.Budget,
		})
	}

	zap.L().Info("merge complete",
		zap.Int("films", len(result.Films)),
		zap.Int("dropped_date", dropped.date),
		zap.Int("dropped_theaters", dropped.theaters),
		zap.Int("dropped_gross", dropped.gross))
	return result
}

// qualityWarnings flags suspicious values on a row that stays in the
// table.
func qualityWarnings(film model.MergedFilm) []error {
	var warns []error
	check := func(field string, v *int64) {
		if v != nil && *v < 0 {
			warns = append(warns, &model.DataQualityError{
				ReleaseID: film.ReleaseID,
				Field:     field,
				Detail:    fmt.Sprintf("negative value %d", *v),
			})
		}
	}
	check("opening_wknd_gross", film.OpeningGross)
	check("domestic_gross", film.DomesticGross)
	check("opening_wknd_theaters", film.OpeningTheaters)
	return warns
}

func assembleFilm(ir model.IndexRow, detail model.DetailRow, score model.ScoreRow, releaseDate time.Time, opts Options) model.MergedFilm {
	film := model.MergedFilm{
		ReleaseID:    ir.ReleaseID,
		Title:        ir.Title,
		ReleaseDate:  releaseDate.Format("2006-01-02"),
		ReleaseYear:  model.IntPtr(releaseDate.Year()),
		ReleaseMonth: model.IntPtr(int(releaseDate.Month())),

		OpeningGross:    detail.OpeningGross,
		OpeningTheaters: detail.OpeningTheaters,
		WidestRelease:   detail.WidestRelease,
		MaxTheaters:     ir.MaxTheaters,

		CriticScore:   score.CriticScore,
		AudienceScore: score.AudienceScore,
		CriticCount:   score.CriticCount,
		AudienceCount: score.AudienceCount,

		ReviewMatchMethod: score.MatchMethod,
	}
	if film.ReviewMatchMethod == "" {
		film.ReviewMatchMethod = model.MatchUnmatched
	}

	// detail-level values win; index fills the gaps
	film.DomesticGross = detail.DomesticGross
	if film.DomesticGross == nil {
		film.DomesticGross = ir.TotalGross
	}
	film.Distributor = detail.Distributor
	if film.Distributor == "" {
		film.Distributor = ir.Distributor
	}
	film.MPAARating = detail.MPAARating
	if film.MPAARating == "" {
		film.MPAARating = score.ContentRating
	}
	film.Genres = detail.Genres
	if film.Genres == "" {
		film.Genres = score.Genres
	}

	threshold := opts.ScoreThreshold
	if film.CriticScore != nil {
		film.CriticCentered = model.IntPtr(*film.CriticScore - threshold)
		film.FreshCritic = model.IntPtr(boolToInt(*film.CriticScore >= threshold))
	}
	if film.AudienceScore != nil {
		film.AudienceCentered = model.IntPtr(*film.AudienceScore - threshold)
		film.FreshAudience = model.IntPtr(boolToInt(*film.AudienceScore >= threshold))
	}

	film.LogOpeningGross = logClipped(film.OpeningGross)
	film.LogTotalGross = logClipped(film.DomesticGross)
	film.LogTheaters = logClipped(film.OpeningTheaters)

	// releases too close to the window's end have incomplete grosses
	cutoff := opts.EndDate.AddDate(0, 0, -opts.InTheatersDays)
	film.InTheaters = !releaseDate.Before(cutoff)

	return film
}

// resolveReleaseDate prefers the detail page's full date and falls back
// to the index page's "Dec 17" raw date plus the index year.
func resolveReleaseDate(detailDate, indexRaw string, indexYear int) (time.Time, bool) {
	if d, ok := parse.Date(detailDate); ok {
		return d, true
	}
	if indexRaw != "" && indexYear != 0 {
		if d, ok := parse.Date(fmt.Sprintf("%s, %d", indexRaw, indexYear)); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// budgetIndex groups the budget table by normalized title for the
// equality join, keeping table order for deterministic fallback.
type budgetIndex struct {
	byNorm map[string][]model.BudgetRow
	all    []model.BudgetRow
}

func buildBudgetIndex(budgets []model.BudgetRow) *budgetIndex {
	idx := &budgetIndex{byNorm: make(map[string][]model.BudgetRow), all: budgets}
	for _, b := range budgets {
		norm := b.TitleNormalized
		if norm == "" {
			norm = title.Normalize(b.Title)
		}
		if norm == "" {
			continue
		}
		idx.byNorm[norm] = append(idx.byNorm[norm], b)
	}
	return idx
}

type budgetMatch struct {
	budget *int64
	title  string
	score  *float64
	status model.BudgetMatchStatus
}

// match finds the budget row for a film. Normalized-title equality is
// required for a clean match; when several budget rows share the
// normalized title, the one with the closest release year wins, earlier
// year on a tie. Without an equality hit, the best fuzzy candidate
// within a year of the release is reported at matched/review/unmatched
// per the thresholds.
func (idx *budgetIndex) match(filmTitle string, filmYear int, opts Options) budgetMatch {
	norm := title.Normalize(filmTitle)
	if norm == "" {
		return budgetMatch{status: model.BudgetUnmatched}
	}

	if rows := idx.byNorm[norm]; len(rows) > 0 {
		best := pickNearestYear(rows, filmYear)
		score := title.MatchScore(best.Title, yearOf(best), filmTitle, filmYear)
		return budgetMatch{
			budget: best.Budget,
			title:  best.Title,
			score:  model.Float64Ptr(score),
			status: model.BudgetMatched,
		}
	}

	// fuzzy fallback, blocked to adjacent years when the year is known
	var best *model.BudgetRow
	var bestScore float64
	for i := range idx.all {
		b := &idx.all[i]
		if filmYear != 0 {
			y := yearOf(*b)
			if y != 0 && abs(y-filmYear) > 1 {
				continue
			}
		}
		s := title.MatchScore(b.Title, yearOf(*b), filmTitle, filmYear)
		if s > bestScore {
			bestScore = s
			best = b
		}
	}

	if best == nil || bestScore < opts.ReviewThreshold {
		return budgetMatch{status: model.BudgetUnmatched}
	}
	status := model.BudgetReview
	if bestScore >= opts.AcceptThreshold {
		status = model.BudgetMatched
	}
	return budgetMatch{
		budget: best.Budget,
		title:  best.Title,
		score:  model.Float64Ptr(bestScore),
		status: status,
	}
}

// pickNearestYear selects the row whose year is closest to filmYear,
// preferring the earlier year on a tie. Rows without a year lose to any
// row with one.
func pickNearestYear(rows []model.BudgetRow, filmYear int) model.BudgetRow {
	best := rows[0]
	for _, r := range rows[1:] {
		if closerYear(r, best, filmYear) {
			best = r
		}
	}
	return best
}

func closerYear(a, b model.BudgetRow, filmYear int) bool {
	ya, yb := yearOf(a), yearOf(b)
	if ya == 0 {
		return false
	}
	if yb == 0 {
		return true
	}
	if filmYear == 0 {
		return ya < yb
	}
	da, db := abs(ya-filmYear), abs(yb-filmYear)
	if da != db {
		return da < db
	}
	return ya < yb
}

func yearOf(b model.BudgetRow) int {
	if b.ReleaseYear == nil {
		return 0
	}
	return *b.ReleaseYear
}

func logClipped(v *int64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	if x < 1 {
		x = 1
	}
	return model.Float64Ptr(math.Log(float64(x)))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
