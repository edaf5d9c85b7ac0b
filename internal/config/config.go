package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig  `yaml:"data" mapstructure:"data"`
	Study      StudyConfig `yaml:"study" mapstructure:"study"`
	BOM        SiteConfig  `yaml:"bom" mapstructure:"bom"`
	TheNumbers SiteConfig  `yaml:"the_numbers" mapstructure:"the_numbers"`
	RT         RTConfig    `yaml:"rt" mapstructure:"rt"`
	Fetch      FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	Match      MatchConfig `yaml:"match" mapstructure:"match"`
	RDD        RDDConfig   `yaml:"rdd" mapstructure:"rdd"`
	Cache      CacheConfig `yaml:"cache" mapstructure:"cache"`
	Log        LogConfig   `yaml:"log" mapstructure:"log"`
}

// DataConfig holds the pipeline artifact directories.
type DataConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
}

// StudyConfig holds the study population parameters.
type StudyConfig struct {
	Years              []int  `yaml:"years" mapstructure:"years"`
	StartDate          string `yaml:"start_date" mapstructure:"start_date"`
	EndDate            string `yaml:"end_date" mapstructure:"end_date"`
	ScoreThreshold     int    `yaml:"score_threshold" mapstructure:"score_threshold"`
	MinOpeningTheaters int    `yaml:"min_opening_theaters" mapstructure:"min_opening_theaters"`
	InTheatersDays     int    `yaml:"in_theaters_days" mapstructure:"in_theaters_days"`
}

// SiteConfig configures a scraped site.
type SiteConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	DelayMs int    `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// RTConfig configures the review-score site, which does bot detection
// and therefore gets rotating user agents and jittered delays.
type RTConfig struct {
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
	DelayMs    int      `yaml:"delay_ms" mapstructure:"delay_ms"`
	JitterMs   int      `yaml:"jitter_ms" mapstructure:"jitter_ms"`
	UserAgents []string `yaml:"user_agents" mapstructure:"user_agents"`
	// SlugRules is an ordered list of "from=to" replacements applied to a
	// title before the generic slug transform. The site's slug conventions
	// around punctuation drift over time, so the table is config, not code.
	SlugRules []string `yaml:"slug_rules" mapstructure:"slug_rules"`
}

// FetchConfig configures HTTP behavior shared by all scrapers.
type FetchConfig struct {
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	Workers          int    `yaml:"workers" mapstructure:"workers"`
}

// MatchConfig configures fuzzy matching thresholds (0-100 scale).
type MatchConfig struct {
	AcceptThreshold float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	SearchThreshold float64 `yaml:"search_threshold" mapstructure:"search_threshold"`
}

// RDDConfig configures the estimation stage.
type RDDConfig struct {
	BandwidthSelect string    `yaml:"bandwidth_select" mapstructure:"bandwidth_select"` // "ik" or "fixed"
	FixedBandwidth  float64   `yaml:"fixed_bandwidth" mapstructure:"fixed_bandwidth"`
	BandwidthGrid   []float64 `yaml:"bandwidth_grid" mapstructure:"bandwidth_grid"` // multipliers on the selected bandwidth
}

// CacheConfig configures the sqlite page cache used for scrape resume.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOXRDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.processed_dir", "data/processed")
	v.SetDefault("data.output_dir", "output")
	v.SetDefault("study.years", []int{2021, 2022, 2023, 2024, 2025, 2026})
	v.SetDefault("study.start_date", "2021-09-01")
	v.SetDefault("study.end_date", "2026-02-07")
	v.SetDefault("study.score_threshold", 60)
	v.SetDefault("study.min_opening_theaters", 600)
	v.SetDefault("study.in_theaters_days", 56)
	v.SetDefault("bom.base_url", "https://www.boxofficemojo.com")
	v.SetDefault("bom.delay_ms", 1500)
	v.SetDefault("the_numbers.base_url", "https://www.the-numbers.com")
	v.SetDefault("the_numbers.delay_ms", 1000)
	v.SetDefault("rt.base_url", "https://www.rottentomatoes.com")
	v.SetDefault("rt.delay_ms", 2000)
	v.SetDefault("rt.jitter_ms", 1500)
	v.SetDefault("rt.user_agents", defaultRTUserAgents)
	v.SetDefault("rt.slug_rules", []string{"&=and", "'=", "’="})
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.initial_backoff_ms", 5000)
	v.SetDefault("fetch.max_backoff_ms", 60000)
	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.workers", 1)
	v.SetDefault("match.accept_threshold", 85)
	v.SetDefault("match.review_threshold", 70)
	v.SetDefault("match.search_threshold", 50)
	v.SetDefault("rdd.bandwidth_select", "ik")
	v.SetDefault("rdd.fixed_bandwidth", 10)
	v.SetDefault("rdd.bandwidth_grid", []float64{0.5, 1.0, 2.0})
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "data/cache.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var defaultRTUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
