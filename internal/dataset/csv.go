// Package dataset reads and writes the flat CSV artifacts each pipeline
// stage produces. Column order follows struct field order, so rewriting
// an unchanged table is byte-identical.
package dataset

import (
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Stage artifact file names.
const (
	IndexFile       = "bom_index.csv"
	DetailsFile     = "bom_details.csv"
	BudgetsFile     = "budgets.csv"
	ScoresFile      = "review_scores.csv"
	MergedFile      = "merged.csv"
	DiagnosticsFile = "match_diagnostics.csv"
	ResultsFile     = "rdd_results.csv"
)

// Write marshals rows to CSV at path, creating parent directories.
func Write[T any](path string, rows []T) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "dataset: marshal %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "dataset: mkdir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "dataset: write %s", path)
	}
	return nil
}

// Read unmarshals all rows from the CSV at path.
func Read[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	var rows []T
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "dataset: unmarshal %s", filepath.Base(path))
	}
	return rows, nil
}

// Exists reports whether a stage artifact is present and non-empty.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
