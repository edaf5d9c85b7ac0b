package model

import "fmt"

// ParseError reports page markup that didn't match the expected
// structure. The affected field is nulled; the run continues.
type ParseError struct {
	Source string // "bom_index", "bom_details", "budgets", "reviews"
	Field  string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s.%s: %s", e.Source, e.Field, e.Detail)
}

// MatchError reports that no acceptable fuzzy match was found. The field
// stays null; downstream filtering decides.
type MatchError struct {
	Title string
	Year  int
	Stage string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("no %s match for %q (%d)", e.Stage, e.Title, e.Year)
}

// DataQualityError flags a suspicious value on a retained row.
type DataQualityError struct {
	ReleaseID string
	Field     string
	Detail    string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality %s.%s: %s", e.ReleaseID, e.Field, e.Detail)
}
