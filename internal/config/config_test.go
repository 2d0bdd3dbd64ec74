package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundscrape/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "combined_funds.xlsx", cfg.Input.Path)
	assert.Equal(t, "combined_funds_1.xlsx", cfg.Output.Path)
	assert.Equal(t, 100, cfg.Batch.RestartEvery)
	assert.Equal(t, 50, cfg.Batch.CheckpointEvery)
	assert.Equal(t, 3, cfg.Scrape.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Scrape.SettleDelay)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTime)
	assert.Equal(t, []int{2, 11, 12, 13, 14}, cfg.ColumnList())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundscrape.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  path: funds.xlsx
  sheet: Fonlar
columns:
  risk_value: 20
browser:
  engine: static
  navigation_timeout: 30s
scrape:
  settle_delay: 1500ms
batch:
  checkpoint_every: 10
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "funds.xlsx", cfg.Input.Path)
	assert.Equal(t, "Fonlar", cfg.Input.Sheet)
	assert.Equal(t, 20, cfg.Columns[extractor.RiskValue])
	assert.Equal(t, 2, cfg.Columns[extractor.Category], "unlisted columns keep defaults")
	assert.Equal(t, EngineStatic, cfg.Browser.Engine)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scrape.SettleDelay)
	assert.Equal(t, 10, cfg.Batch.CheckpointEvery)
	assert.Equal(t, 100, cfg.Batch.RestartEvery)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch: [1, 2"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundscrape.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  path: from-file.xlsx\n"), 0o644))

	t.Setenv("FUNDSCRAPE_OUTPUT", "from-env.xlsx")
	t.Setenv("FUNDSCRAPE_HEADLESS", "false")
	t.Setenv("FUNDSCRAPE_RESTART_EVERY", "25")
	t.Setenv("FUNDSCRAPE_NAV_TIMEOUT", "2m")
	t.Setenv("FUNDSCRAPE_RPM", "30")
	t.Setenv("FUNDSCRAPE_LIMIT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.xlsx", cfg.Output.Path)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 25, cfg.Batch.RestartEvery)
	assert.Equal(t, 2*time.Minute, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 30.0, cfg.Batch.RequestsPerMinute)
	assert.Equal(t, 0, cfg.Batch.Limit, "unparsable values fall back")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown engine", func(c *Config) { c.Browser.Engine = "selenium" }, "unknown engine"},
		{"shared column", func(c *Config) { c.Columns[extractor.RiskValue] = 12 }, "share column 12"},
		{"key column", func(c *Config) { c.Columns[extractor.Category] = 0 }, "overwrites the key column"},
		{"missing field", func(c *Config) { delete(c.Columns, extractor.FundStatus) }, "exactly 5 fields"},
		{"unknown field", func(c *Config) {
			delete(c.Columns, extractor.FundStatus)
			c.Columns["nav"] = 20
		}, `unknown field "nav"`},
		{"restart", func(c *Config) { c.Batch.RestartEvery = 0 }, "restart interval"},
		{"checkpoint", func(c *Config) { c.Batch.CheckpointEvery = -1 }, "checkpoint interval"},
		{"backoff", func(c *Config) { c.Scrape.RetryMax = 0 }, "retry backoff range"},
		{"politeness", func(c *Config) { c.Batch.PolitenessMin = 5 * time.Second }, "politeness delay range"},
		{"retries", func(c *Config) { c.Scrape.MaxRetries = -1 }, "max retries"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "unknown log format"},
		{"timeout", func(c *Config) { c.Browser.NavigationTimeout = 0 }, "navigation timeout"},
		{"input", func(c *Config) { c.Input.Path = "" }, "input path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Browser.Engine = ""
	cfg.Batch.RestartEvery = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
	assert.Contains(t, err.Error(), "restart interval")
}
