package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/bom"
	"github.com/filmlab/boxrdd/internal/dataset"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scrape the yearly box-office index pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := bom.NewIndexScraper(newFetcher(), cfg.BOM.BaseURL)
		rows, err := s.ScrapeYears(ctx, cfg.Study.Years)
		if err != nil {
			return eris.Wrap(err, "index: scrape")
		}

		out := rawPath(dataset.IndexFile)
		if err := ensureDir(out); err != nil {
			return err
		}
		if err := dataset.Write(out, rows); err != nil {
			return eris.Wrap(err, "index: write")
		}
		zap.L().Info("index written", zap.String("path", out), zap.Int("films", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
