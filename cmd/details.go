package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/bom"
	"github.com/filmlab/boxrdd/internal/dataset"
	"github.com/filmlab/boxrdd/internal/model"
)

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Scrape per-release detail pages for every indexed film",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		index, err := dataset.Read[model.IndexRow](rawPath(dataset.IndexFile))
		if err != nil {
			return eris.Wrap(err, "details: read index (run 'boxrdd index' first)")
		}

		cache := openCache()
		if cache != nil {
			defer cache.Close()
			if err := cache.Migrate(ctx); err != nil {
				return eris.Wrap(err, "details: migrate cache")
			}
		}

		s := bom.NewDetailScraper(newFetcher(), cache, cfg.Fetch.Workers)
		rows, err := s.ScrapeAll(ctx, index)
		if err != nil {
			return err
		}

		out := rawPath(dataset.DetailsFile)
		if err := ensureDir(out); err != nil {
			return err
		}
		if err := dataset.Write(out, rows); err != nil {
			return eris.Wrap(err, "details: write")
		}
		zap.L().Info("details written", zap.String("path", out), zap.Int("films", len(rows)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detailsCmd)
}
