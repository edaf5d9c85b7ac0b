package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/dataset"
	"github.com/filmlab/boxrdd/internal/merge"
	"github.com/filmlab/boxrdd/internal/model"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the scraped tables into the analysis dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := runMerge()
		if err != nil {
			return err
		}
		zap.L().Info("merge written",
			zap.String("path", processedPath(dataset.MergedFile)),
			zap.Int("films", len(res.Films)))
		return nil
	},
}

func runMerge() (merge.Result, error) {
	index, err := dataset.Read[model.IndexRow](rawPath(dataset.IndexFile))
	if err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: read index")
	}
	details, err := dataset.Read[model.DetailRow](rawPath(dataset.DetailsFile))
	if err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: read details")
	}
	scores, err := dataset.Read[model.ScoreRow](rawPath(dataset.ScoresFile))
	if err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: read scores")
	}
	budgets, err := dataset.Read[model.BudgetRow](rawPath(dataset.BudgetsFile))
	if err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: read budgets")
	}

	opts, err := mergeOptions()
	if err != nil {
		return merge.Result{}, err
	}
	res := merge.Build(index, details, scores, budgets, opts)

	mergedPath := processedPath(dataset.MergedFile)
	if err := ensureDir(mergedPath); err != nil {
		return merge.Result{}, err
	}
	if err := dataset.Write(mergedPath, res.Films); err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: write dataset")
	}
	if err := dataset.Write(processedPath(dataset.DiagnosticsFile), res.Diagnostics); err != nil {
		return merge.Result{}, eris.Wrap(err, "merge: write diagnostics")
	}
	return res, nil
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
