package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/bom"
	"github.com/filmlab/boxrdd/internal/budgets"
	"github.com/filmlab/boxrdd/internal/dataset"
	"github.com/filmlab/boxrdd/internal/reviews"
)

var runSkipScrape bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scrape, merge, analyze",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !runSkipScrape {
			if err := scrapeAll(ctx); err != nil {
				return err
			}
		}

		res, err := runMerge()
		if err != nil {
			return err
		}
		zap.L().Info("pipeline merge done", zap.Int("films", len(res.Films)))

		return runAnalysis(res.Films)
	},
}

func scrapeAll(ctx context.Context) error {
	fetch := newFetcher()

	cache := openCache()
	if cache != nil {
		defer cache.Close()
		if err := cache.Migrate(ctx); err != nil {
			return eris.Wrap(err, "run: migrate cache")
		}
	}

	// stage 1: yearly index
	indexRows, err := bom.NewIndexScraper(fetch, cfg.BOM.BaseURL).ScrapeYears(ctx, cfg.Study.Years)
	if err != nil {
		return eris.Wrap(err, "run: index")
	}
	indexPath := rawPath(dataset.IndexFile)
	if err := ensureDir(indexPath); err != nil {
		return err
	}
	if err := dataset.Write(indexPath, indexRows); err != nil {
		return eris.Wrap(err, "run: write index")
	}

	// stage 2: release details
	detailRows, err := bom.NewDetailScraper(fetch, cache, cfg.Fetch.Workers).ScrapeAll(ctx, indexRows)
	if err != nil {
		return eris.Wrap(err, "run: details")
	}
	if err := dataset.Write(rawPath(dataset.DetailsFile), detailRows); err != nil {
		return eris.Wrap(err, "run: write details")
	}

	// stage 3: budgets
	budgetRows, err := budgets.NewScraper(fetch, cfg.TheNumbers.BaseURL).ScrapeAll(ctx)
	if err != nil {
		return eris.Wrap(err, "run: budgets")
	}
	if err := dataset.Write(rawPath(dataset.BudgetsFile), budgetRows); err != nil {
		return eris.Wrap(err, "run: write budgets")
	}

	// stage 4: review scores
	scoreRows, err := reviews.NewScraper(fetch, cache, reviews.Options{
		BaseURL:         cfg.RT.BaseURL,
		UserAgents:      cfg.RT.UserAgents,
		SlugRules:       slugRules(),
		SearchThreshold: cfg.Match.SearchThreshold,
	}).ScrapeAll(ctx, detailRows)
	if err != nil {
		return eris.Wrap(err, "run: scores")
	}
	if err := dataset.Write(rawPath(dataset.ScoresFile), scoreRows); err != nil {
		return eris.Wrap(err, "run: write scores")
	}

	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runSkipScrape, "skip-scrape", false, "merge and analyze existing raw files without scraping")
	rootCmd.AddCommand(runCmd)
}
