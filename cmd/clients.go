package main

import (
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/filmlab/boxrdd/internal/fetcher"
	"github.com/filmlab/boxrdd/internal/merge"
	"github.com/filmlab/boxrdd/internal/rdd"
	"github.com/filmlab/boxrdd/internal/resilience"
	"github.com/filmlab/boxrdd/internal/store"
	"github.com/filmlab/boxrdd/internal/title"
)

// newFetcher builds the shared HTTP client with one polite limiter per
// scraped host.
func newFetcher() fetcher.Fetcher {
	limiters := map[string]*rate.Limiter{}
	addLimiter(limiters, cfg.BOM.BaseURL, cfg.BOM.DelayMs)
	addLimiter(limiters, cfg.TheNumbers.BaseURL, cfg.TheNumbers.DelayMs)
	addLimiter(limiters, cfg.RT.BaseURL, cfg.RT.DelayMs+cfg.RT.JitterMs/2)

	return fetcher.New(fetcher.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Fetch.MaxRetries,
			InitialBackoff: time.Duration(cfg.Fetch.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Fetch.MaxBackoffMs) * time.Millisecond,
			OnRetry:        resilience.RetryLogger("http", "get"),
		},
		Limiters: limiters,
	})
}

func addLimiter(limiters map[string]*rate.Limiter, baseURL string, delayMs int) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return
	}
	limiters[u.Host] = fetcher.LimiterForDelay(time.Duration(delayMs) * time.Millisecond)
}

// openCache opens the scrape resume store, or returns nil when caching
// is off. A cache that fails to open downgrades to uncached scraping.
func openCache() *store.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if dir := filepath.Dir(cfg.Cache.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			zap.L().Warn("cache dir create failed, scraping without resume", zap.Error(err))
			return nil
		}
	}
	c, err := store.Open(cfg.Cache.Path)
	if err != nil {
		zap.L().Warn("cache open failed, scraping without resume", zap.Error(err))
		return nil
	}
	return c
}

func rawPath(name string) string       { return filepath.Join(cfg.Data.RawDir, name) }
func processedPath(name string) string { return filepath.Join(cfg.Data.ProcessedDir, name) }
func outputPath(name string) string    { return filepath.Join(cfg.Data.OutputDir, name) }

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create output dir")
	}
	return nil
}

func studyWindow() (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", cfg.Study.StartDate)
	if err != nil {
		return start, end, eris.Wrap(err, "parse study start date")
	}
	end, err = time.Parse("2006-01-02", cfg.Study.EndDate)
	if err != nil {
		return start, end, eris.Wrap(err, "parse study end date")
	}
	return start, end, nil
}

func mergeOptions() (merge.Options, error) {
	start, end, err := studyWindow()
	if err != nil {
		return merge.Options{}, err
	}
	return merge.Options{
		StartDate:          start,
		EndDate:            end,
		ScoreThreshold:     cfg.Study.ScoreThreshold,
		MinOpeningTheaters: int64(cfg.Study.MinOpeningTheaters),
		InTheatersDays:     cfg.Study.InTheatersDays,
		AcceptThreshold:    cfg.Match.AcceptThreshold,
		ReviewThreshold:    cfg.Match.ReviewThreshold,
	}, nil
}

func rddConfig() (rdd.Config, error) {
	start, end, err := studyWindow()
	if err != nil {
		return rdd.Config{}, err
	}
	return rdd.Config{
		BandwidthSelect:    cfg.RDD.BandwidthSelect,
		FixedBandwidth:     cfg.RDD.FixedBandwidth,
		BandwidthGrid:      cfg.RDD.BandwidthGrid,
		ScoreThreshold:     cfg.Study.ScoreThreshold,
		StartDate:          start,
		EndDate:            end,
		MinOpeningTheaters: int64(cfg.Study.MinOpeningTheaters),
	}, nil
}

func slugRules() []title.SlugRule {
	return title.ParseSlugRules(cfg.RT.SlugRules)
}
