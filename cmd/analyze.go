package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/dataset"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/rdd"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Estimate the threshold effect on the merged dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		films, err := dataset.Read[model.MergedFilm](processedPath(dataset.MergedFile))
		if err != nil {
			return eris.Wrap(err, "analyze: read merged dataset (run 'boxrdd merge' first)")
		}
		return runAnalysis(films)
	},
}

func runAnalysis(films []model.MergedFilm) error {
	rcfg, err := rddConfig()
	if err != nil {
		return err
	}

	rows := rdd.RunAll(films, rcfg)
	text := rdd.FormatText(rows, rcfg)
	fmt.Print(text)

	txtPath := outputPath("rdd_results.txt")
	if err := ensureDir(txtPath); err != nil {
		return err
	}
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return eris.Wrap(err, "analyze: write results text")
	}
	if err := dataset.Write(outputPath(dataset.ResultsFile), rows); err != nil {
		return eris.Wrap(err, "analyze: write results csv")
	}
	zap.L().Info("analysis written",
		zap.String("text", txtPath),
		zap.String("csv", outputPath(dataset.ResultsFile)),
		zap.Int("specifications", len(rows)))
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
