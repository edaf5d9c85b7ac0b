package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmlab/boxrdd/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"index", "details", "budgets", "scores", "merge", "analyze", "run"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "boxrdd", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScoresCommand_Flags(t *testing.T) {
	flag := scoresCmd.Flags().Lookup("rescrape-missing")
	require.NotNil(t, flag, "scores command should have --rescrape-missing flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("skip-scrape")
	require.NotNil(t, flag, "run command should have --skip-scrape flag")
}

func withTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old := cfg
	cfg = &config.Config{
		Data: config.DataConfig{
			RawDir:       filepath.Join(dir, "raw"),
			ProcessedDir: filepath.Join(dir, "processed"),
			OutputDir:    filepath.Join(dir, "output"),
		},
		Study: config.StudyConfig{
			Years:              []int{2022},
			StartDate:          "2021-09-01",
			EndDate:            "2026-02-07",
			ScoreThreshold:     60,
			MinOpeningTheaters: 600,
			InTheatersDays:     56,
		},
		BOM:        config.SiteConfig{BaseURL: "https://bom.example", DelayMs: 1},
		TheNumbers: config.SiteConfig{BaseURL: "https://tn.example", DelayMs: 1},
		RT:         config.RTConfig{BaseURL: "https://rt.example", DelayMs: 1},
		Fetch:      config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, Workers: 1},
		Match:      config.MatchConfig{AcceptThreshold: 85, ReviewThreshold: 70, SearchThreshold: 50},
		RDD:        config.RDDConfig{BandwidthSelect: "fixed", FixedBandwidth: 10, BandwidthGrid: []float64{0.5, 1, 2}},
	}
	t.Cleanup(func() { cfg = old })
}

func TestMergeOptions(t *testing.T) {
	withTestConfig(t)

	opts, err := mergeOptions()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC), opts.StartDate)
	assert.Equal(t, int64(600), opts.MinOpeningTheaters)
	assert.Equal(t, 60, opts.ScoreThreshold)
	assert.Equal(t, 85.0, opts.AcceptThreshold)
}

func TestMergeOptions_BadDate(t *testing.T) {
	withTestConfig(t)
	cfg.Study.StartDate = "not-a-date"
	_, err := mergeOptions()
	require.Error(t, err)
}

func TestRDDConfig(t *testing.T) {
	withTestConfig(t)

	rcfg, err := rddConfig()
	require.NoError(t, err)
	assert.Equal(t, "fixed", rcfg.BandwidthSelect)
	assert.Equal(t, 10.0, rcfg.FixedBandwidth)
	assert.Equal(t, []float64{0.5, 1, 2}, rcfg.BandwidthGrid)
}

func TestPathHelpers(t *testing.T) {
	withTestConfig(t)

	assert.Equal(t, filepath.Join(cfg.Data.RawDir, "bom_index.csv"), rawPath("bom_index.csv"))
	assert.Equal(t, filepath.Join(cfg.Data.OutputDir, "rdd_results.txt"), outputPath("rdd_results.txt"))

	p := rawPath("x.csv")
	require.NoError(t, ensureDir(p))
	assert.DirExists(t, filepath.Dir(p))
}

func TestNewFetcherBuildsLimiters(t *testing.T) {
	withTestConfig(t)
	// must not panic and must return a usable client
	f := newFetcher()
	require.NotNil(t, f)
}
