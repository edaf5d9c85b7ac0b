package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/budgets"
	"github.com/filmlab/boxrdd/internal/dataset"
)

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "Scrape the production-budget listing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := budgets.NewScraper(newFetcher(), cfg.TheNumbers.BaseURL)
		rows, err := s.ScrapeAll(ctx)
		if err != nil {
			return eris.Wrap(err, "budgets: scrape")
		}

		out := rawPath(dataset.BudgetsFile)
		if err := ensureDir(out); err != nil {
			return err
		}
		if err := dataset.Write(out, rows); err != nil {
			return eris.Wrap(err, "budgets: write")
		}
		zap.L().Info("budgets written", zap.String("path", out), zap.Int("films", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(budgetsCmd)
}
