package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmlab/boxrdd/internal/dataset"
	"github.com/filmlab/boxrdd/internal/model"
	"github.com/filmlab/boxrdd/internal/reviews"
)

var scoresRescrape bool

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Scrape review scores for every film",
	Long: `Scrape critic and audience scores from the review site.

Locates each film's page via candidate URL slugs, falling back to site
search. With --rescrape-missing, retries films whose page resolved but
yielded no scores instead of scraping from scratch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		films, err := loadFilmList()
		if err != nil {
			return err
		}

		cache := openCache()
		if cache != nil {
			defer cache.Close()
			if err := cache.Migrate(ctx); err != nil {
				return eris.Wrap(err, "scores: migrate cache")
			}
		}

		s := reviews.NewScraper(newFetcher(), cache, reviews.Options{
			BaseURL:         cfg.RT.BaseURL,
			UserAgents:      cfg.RT.UserAgents,
			SlugRules:       slugRules(),
			SearchThreshold: cfg.Match.SearchThreshold,
		})

		out := rawPath(dataset.ScoresFile)

		if scoresRescrape {
			rows, err := dataset.Read[model.ScoreRow](out)
			if err != nil {
				return eris.Wrap(err, "scores: read existing scores for rescrape")
			}
			recovered, err := s.RescrapeMissing(ctx, rows, films)
			if err != nil {
				return err
			}
			if err := dataset.Write(out, rows); err != nil {
				return eris.Wrap(err, "scores: write")
			}
			zap.L().Info("scores updated", zap.String("path", out), zap.Int("recovered", recovered))
			return nil
		}

		rows, err := s.ScrapeAll(ctx, films)
		if err != nil {
			return err
		}
		if err := ensureDir(out); err != nil {
			return err
		}
		if err := dataset.Write(out, rows); err != nil {
			return eris.Wrap(err, "scores: write")
		}
		zap.L().Info("scores written", zap.String("path", out), zap.Int("films", len(rows)))
		return nil
	},
}

// loadFilmList prefers the detail table (it has full release dates for
// year-disambiguated slugs) and falls back to the index.
func loadFilmList() ([]model.DetailRow, error) {
	detailsPath := rawPath(dataset.DetailsFile)
	if dataset.Exists(detailsPath) {
		return dataset.Read[model.DetailRow](detailsPath)
	}

	index, err := dataset.Read[model.IndexRow](rawPath(dataset.IndexFile))
	if err != nil {
		return nil, eris.Wrap(err, "scores: no scraped film data (run 'boxrdd index' first)")
	}
	zap.L().Warn("detail table missing, using index titles without full release dates")
	films := make([]model.DetailRow, len(index))
	for i, ir := range index {
		films[i] = model.DetailRow{ReleaseID: ir.ReleaseID, Title: ir.Title}
	}
	return films, nil
}

func init() {
	scoresCmd.Flags().BoolVar(&scoresRescrape, "rescrape-missing", false, "retry films that matched a page but got no scores")
	rootCmd.AddCommand(scoresCmd)
}
