package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fundscrape/internal/extractor"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Engines.
const (
	EngineRod    = "rod"
	EngineStatic = "static"
)

// Config holds all run configuration.
type Config struct {
	Input    InputConfig             `yaml:"input"`
	Output   OutputConfig            `yaml:"output"`
	Columns  map[extractor.Field]int `yaml:"columns"`
	Browser  BrowserConfig           `yaml:"browser"`
	Scrape   ScrapeConfig            `yaml:"scrape"`
	Batch    BatchConfig             `yaml:"batch"`
	Log      LogConfig               `yaml:"log"`
	Debug    DebugConfig             `yaml:"debug"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Progress bool                    `yaml:"progress"`
}

// InputConfig locates the fund list.
type InputConfig struct {
	Path      string `yaml:"path"`       // default: "combined_funds.xlsx"
	Sheet     string `yaml:"sheet"`      // default: first sheet
	KeyColumn int    `yaml:"key_column"` // default: 0
}

// OutputConfig locates the enriched workbook.
type OutputConfig struct {
	Path string `yaml:"path"` // default: "combined_funds_1.xlsx"
}

// BrowserConfig controls the page session.
type BrowserConfig struct {
	// Engine is "rod" (headless Chrome) or "static" (plain HTTP, no JavaScript).
	Engine    string `yaml:"engine"`     // default: "rod"
	Headless  bool   `yaml:"headless"`   // default: true
	NoSandbox bool   `yaml:"no_sandbox"` // default: true
	ProxyURL  string `yaml:"proxy"`
	Bin       string `yaml:"bin"`
	UserAgent string `yaml:"user_agent"`

	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 60s
	WaitTime          time.Duration `yaml:"wait_time"`          // default: 10s
}

// ScrapeConfig controls a single row.
type ScrapeConfig struct {
	Site        string        `yaml:"site"`         // default: "tefas"
	BaseURL     string        `yaml:"base_url"`     // default: site's public host
	MaxRetries  int           `yaml:"max_retries"`  // default: 3
	RetryMin    time.Duration `yaml:"retry_min"`    // default: 1s
	RetryMax    time.Duration `yaml:"retry_max"`    // default: 3s
	SettleDelay time.Duration `yaml:"settle_delay"` // default: 3s
	ReadyXPath  string        `yaml:"ready_xpath"`
}

// BatchConfig controls the row loop.
type BatchConfig struct {
	RestartEvery      int           `yaml:"restart_every"`       // default: 100
	CheckpointEvery   int           `yaml:"checkpoint_every"`    // default: 50
	PolitenessMin     time.Duration `yaml:"politeness_min"`      // default: 500ms
	PolitenessMax     time.Duration `yaml:"politeness_max"`      // default: 2s
	RequestsPerMinute float64       `yaml:"requests_per_minute"` // 0 disables the limiter
	Limit             int           `yaml:"limit"`               // 0 processes every row
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text", "json" or "logfmt"; default: "text"
}

// DebugConfig enables page dumps for pattern tuning.
type DebugConfig struct {
	DumpDir    string `yaml:"dump_dir"`
	DumpFormat string `yaml:"dump_format"` // "markdown" or "html"; default: "markdown"
}

// MetricsConfig enables the textfile metrics export.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// DefaultColumns maps each field to its zero-based output column.
func DefaultColumns() map[extractor.Field]int {
	return map[extractor.Field]int{
		extractor.Category:      2,
		extractor.InvestorCount: 11,
		extractor.MarketShare:   12,
		extractor.RiskValue:     13,
		extractor.FundStatus:    14,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Input:   InputConfig{Path: "combined_funds.xlsx"},
		Output:  OutputConfig{Path: "combined_funds_1.xlsx"},
		Columns: DefaultColumns(),
		Browser: BrowserConfig{
			Engine:            EngineRod,
			Headless:          true,
			NoSandbox:         true,
			NavigationTimeout: 60 * time.Second,
			WaitTime:          10 * time.Second,
		},
		Scrape: ScrapeConfig{
			Site:        "tefas",
			MaxRetries:  3,
			RetryMin:    time.Second,
			RetryMax:    3 * time.Second,
			SettleDelay: 3 * time.Second,
		},
		Batch: BatchConfig{
			RestartEvery:    100,
			CheckpointEvery: 50,
			PolitenessMin:   500 * time.Millisecond,
			PolitenessMax:   2 * time.Second,
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Debug: DebugConfig{DumpFormat: "markdown"},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then FUNDSCRAPE_* environment variables.
// Flags are applied by the caller, which must call Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Input.Path = envOr("FUNDSCRAPE_INPUT", c.Input.Path)
	c.Input.Sheet = envOr("FUNDSCRAPE_SHEET", c.Input.Sheet)
	c.Output.Path = envOr("FUNDSCRAPE_OUTPUT", c.Output.Path)

	c.Browser.Engine = envOr("FUNDSCRAPE_ENGINE", c.Browser.Engine)
	c.Browser.Headless = envBoolOr("FUNDSCRAPE_HEADLESS", c.Browser.Headless)
	c.Browser.NoSandbox = envBoolOr("FUNDSCRAPE_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.ProxyURL = envOr("FUNDSCRAPE_PROXY", c.Browser.ProxyURL)
	c.Browser.Bin = envOr("FUNDSCRAPE_BROWSER_BIN", c.Browser.Bin)
	c.Browser.UserAgent = envOr("FUNDSCRAPE_USER_AGENT", c.Browser.UserAgent)
	c.Browser.NavigationTimeout = envDurationOr("FUNDSCRAPE_NAV_TIMEOUT", c.Browser.NavigationTimeout)
	c.Browser.WaitTime = envDurationOr("FUNDSCRAPE_WAIT_TIME", c.Browser.WaitTime)

	c.Scrape.Site = envOr("FUNDSCRAPE_SITE", c.Scrape.Site)
	c.Scrape.BaseURL = envOr("FUNDSCRAPE_BASE_URL", c.Scrape.BaseURL)
	c.Scrape.MaxRetries = envIntOr("FUNDSCRAPE_MAX_RETRIES", c.Scrape.MaxRetries)
	c.Scrape.SettleDelay = envDurationOr("FUNDSCRAPE_SETTLE_DELAY", c.Scrape.SettleDelay)

	c.Batch.RestartEvery = envIntOr("FUNDSCRAPE_RESTART_EVERY", c.Batch.RestartEvery)
	c.Batch.CheckpointEvery = envIntOr("FUNDSCRAPE_CHECKPOINT_EVERY", c.Batch.CheckpointEvery)
	c.Batch.RequestsPerMinute = envFloatOr("FUNDSCRAPE_RPM", c.Batch.RequestsPerMinute)
	c.Batch.Limit = envIntOr("FUNDSCRAPE_LIMIT", c.Batch.Limit)

	c.Log.Level = envOr("FUNDSCRAPE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("FUNDSCRAPE_LOG_FORMAT", c.Log.Format)
	c.Debug.DumpDir = envOr("FUNDSCRAPE_DUMP_DIR", c.Debug.DumpDir)
	c.Metrics.File = envOr("FUNDSCRAPE_METRICS_FILE", c.Metrics.File)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Input.Path == "" {
		add("input path is required")
	}
	if c.Output.Path == "" {
		add("output path is required")
	}
	if c.Input.KeyColumn < 0 {
		add("key column must not be negative")
	}

	if len(c.Columns) != len(extractor.Fields) {
		add("columns must map exactly %d fields, got %d", len(extractor.Fields), len(c.Columns))
	}
	used := map[int]extractor.Field{}
	for f, col := range c.Columns {
		if !f.Valid() {
			add("unknown field %q in columns", f)
			continue
		}
		if col < 0 {
			add("column for %s must not be negative", f)
		}
		if col == c.Input.KeyColumn {
			add("column for %s overwrites the key column %d", f, col)
		}
		if other, ok := used[col]; ok {
			add("fields %s and %s share column %d", other, f, col)
		}
		used[col] = f
	}

	switch c.Browser.Engine {
	case EngineRod, EngineStatic:
	default:
		add("unknown engine %q (want %s or %s)", c.Browser.Engine, EngineRod, EngineStatic)
	}
	if c.Browser.NavigationTimeout <= 0 {
		add("navigation timeout must be positive")
	}
	if c.Browser.WaitTime < 0 {
		add("wait time must not be negative")
	}

	if c.Scrape.Site == "" {
		add("site is required")
	}
	if c.Scrape.MaxRetries < 0 {
		add("max retries must not be negative")
	}
	if c.Scrape.RetryMin < 0 || c.Scrape.RetryMax < c.Scrape.RetryMin {
		add("retry backoff range [%s, %s] is invalid", c.Scrape.RetryMin, c.Scrape.RetryMax)
	}
	if c.Scrape.SettleDelay < 0 {
		add("settle delay must not be negative")
	}

	if c.Batch.RestartEvery <= 0 {
		add("restart interval must be positive")
	}
	if c.Batch.CheckpointEvery <= 0 {
		add("checkpoint interval must be positive")
	}
	if c.Batch.PolitenessMin < 0 || c.Batch.PolitenessMax < c.Batch.PolitenessMin {
		add("politeness delay range [%s, %s] is invalid", c.Batch.PolitenessMin, c.Batch.PolitenessMax)
	}
	if c.Batch.RequestsPerMinute < 0 {
		add("requests per minute must not be negative")
	}
	if c.Batch.Limit < 0 {
		add("limit must not be negative")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add("invalid log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "logfmt":
	default:
		add("unknown log format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Debug.DumpFormat) {
	case "markdown", "md", "html":
	default:
		add("unknown dump format %q", c.Debug.DumpFormat)
	}

	return errors.Join(errs...)
}

// ColumnList returns the mapped columns in field order.
func (c *Config) ColumnList() []int {
	cols := make([]int, 0, len(extractor.Fields))
	for _, f := range extractor.Fields {
		cols = append(cols, c.Columns[f])
	}
	return cols
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
