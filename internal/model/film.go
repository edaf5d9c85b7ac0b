// Package model defines the film records exchanged between pipeline stages.
package model

// IndexRow is one film parsed from a yearly box-office index page.
type IndexRow struct {
	ReleaseID      string `csv:"bom_release_id"`
	Title          string `csv:"title"`
	YearGross      *int64 `csv:"gross"`
	TotalGross     *int64 `csv:"total_gross"`
	MaxTheaters    *int64 `csv:"max_theaters"`
	ReleaseDateRaw string `csv:"release_date_raw"`
	Year           int    `csv:"bom_year"`
	Distributor    string `csv:"distributor"`
	ReleaseURL     string `csv:"release_url"`
}

// DetailRow is the result of scraping one release detail page. Fields a
// page failed to yield stay nil; the row is never dropped.
type DetailRow struct {
	ReleaseID       string `csv:"bom_release_id"`
	Title           string `csv:"title"`
	OpeningGross    *int64 `csv:"opening_wknd_gross"`
	OpeningTheaters *int64 `csv:"opening_wknd_theaters"`
	WidestRelease   *int64 `csv:"widest_release"`
	DomesticGross   *int64 `csv:"domestic_gross"`
	MPAARating      string `csv:"mpaa_rating"`
	Genres          string `csv:"genres"`
	ReleaseDate     string `csv:"release_date"`
	Distributor     string `csv:"distributor"`
}

// BudgetRow is one film from the production-budget listing.
type BudgetRow struct {
	Rank            *int   `csv:"tn_rank"`
	Title           string `csv:"title"`
	ReleaseDate     string `csv:"release_date"`
	ReleaseYear     *int   `csv:"release_year"`
	Budget          *int64 `csv:"production_budget"`
	DomesticGross   *int64 `csv:"domestic_gross"`
	WorldwideGross  *int64 `csv:"worldwide_gross"`
	TitleNormalized string `csv:"title_normalized"`
}

// MatchMethod records how a review page was located.
type MatchMethod string

const (
	MatchDirect    MatchMethod = "direct_url"
	MatchSearch    MatchMethod = "search"
	MatchUnmatched MatchMethod = "unmatched"
)

// ScoreRow holds review scores for one film. Nil scores mean no
// acceptable page match; the estimator's listwise requirement excludes
// them later.
type ScoreRow struct {
	ReleaseID     string      `csv:"bom_release_id"`
	TitleSearched string      `csv:"title_searched"`
	URL           string      `csv:"rt_url"`
	PageTitle     string      `csv:"rt_title"`
	CriticScore   *int        `csv:"tomatometer"`
	AudienceScore *int        `csv:"audience_score"`
	CriticCount   *int        `csv:"critic_count"`
	AudienceCount *int        `csv:"audience_count"`
	Genres        string      `csv:"rt_genres"`
	ContentRating string      `csv:"rt_rating"`
	MatchMethod   MatchMethod `csv:"match_method"`
}

// BudgetMatchStatus classifies a fuzzy budget match.
type BudgetMatchStatus string

const (
	BudgetMatched   BudgetMatchStatus = "matched"
	BudgetReview    BudgetMatchStatus = "review"
	BudgetUnmatched BudgetMatchStatus = "unmatched"
)

// MergedFilm is one row of the frozen analysis table. Field order is the
// CSV column order and must stay stable: the merge stage is required to
// reproduce byte-identical output on unchanged inputs.
type MergedFilm struct {
	ReleaseID    string `csv:"bom_release_id"`
	Title        string `csv:"title"`
	ReleaseDate  string `csv:"release_date"`
	ReleaseYear  *int   `csv:"release_year"`
	ReleaseMonth *int   `csv:"release_month"`
	Distributor  string `csv:"distributor"`
	MPAARating   string `csv:"mpaa_rating"`
	Genres       string `csv:"genres"`

	OpeningGross    *int64 `csv:"opening_wknd_gross"`
	OpeningTheaters *int64 `csv:"opening_wknd_theaters"`
	DomesticGross   *int64 `csv:"domestic_gross"`
	WidestRelease   *int64 `csv:"widest_release"`
	MaxTheaters     *int64 `csv:"max_theaters"`
	Budget          *int64 `csv:"production_budget"`

	CriticScore   *int `csv:"tomatometer"`
	AudienceScore *int `csv:"audience_score"`
	CriticCount   *int `csv:"critic_count"`
	AudienceCount *int `csv:"audience_count"`

	FreshCritic      *int     `csv:"is_fresh_critic"`
	FreshAudience    *int     `csv:"is_fresh_audience"`
	CriticCentered   *int     `csv:"tomatometer_centered"`
	AudienceCentered *int     `csv:"audience_score_centered"`
	LogOpeningGross  *float64 `csv:"log_opening_gross"`
	LogTotalGross    *float64 `csv:"log_total_gross"`
	LogTheaters      *float64 `csv:"log_theaters"`
	LogBudget        *float64 `csv:"log_budget"`
	InTheaters       bool     `csv:"in_theaters"`

	ReviewMatchMethod MatchMethod       `csv:"match_method"`
	BudgetMatchTitle  string            `csv:"tn_title_matched"`
	BudgetMatchScore  *float64          `csv:"tn_match_score"`
	BudgetMatchStatus BudgetMatchStatus `csv:"tn_match_status"`
}

// Diagnostic is one row of the manual-review artifact emitted by the
// merge stage.
type Diagnostic struct {
	ReleaseID         string            `csv:"bom_release_id"`
	Title             string            `csv:"title"`
	ReleaseYear       *int              `csv:"release_year"`
	CriticScore       *int              `csv:"tomatometer"`
	AudienceScore     *int              `csv:"audience_score"`
	ReviewMatchMethod MatchMethod       `csv:"match_method"`
	ReviewURL         string            `csv:"rt_url"`
	ReviewPageTitle   string            `csv:"rt_title"`
	BudgetMatchTitle  string            `csv:"tn_title_matched"`
	BudgetMatchScore  *float64          `csv:"tn_match_score"`
	BudgetMatchStatus BudgetMatchStatus `csv:"tn_match_status"`
	Budget            *int64            `csv:"production_budget"`
}

// IntPtr, Int64Ptr and Float64Ptr are conveniences for building records.
func IntPtr(v int) *int             { return &v }
func Int64Ptr(v int64) *int64       { return &v }
func Float64Ptr(v float64) *float64 { return &v }
