package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fundscrape/internal/batch"
	"fundscrape/internal/browser"
	"fundscrape/internal/config"
	"fundscrape/internal/metrics"
	"fundscrape/internal/output"
	"fundscrape/internal/progress"
	"fundscrape/internal/scraper"
	"fundscrape/internal/sheet"
	_ "fundscrape/internal/sites/tefas"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFile  string
	inputPath   string
	outputPath  string
	sheetName   string
	limit       int
	engine      string
	showUI      bool
	proxyURL    string
	dumpDir     string
	metricsFile string
	logLevel    string
	showProg    bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fundscrape",
		Short:   "Enrich a fund list spreadsheet with TEFAS disclosure fields",
		Version: version,
		Long: `fundscrape reads fund codes from the first column of a spreadsheet, opens
each fund's analysis page on TEFAS in a headless browser, and writes the
category, investor count, market share, risk value and trading status back
into the sheet. Progress is saved periodically so an interrupted run keeps
the rows it finished.`,
		Example: `  # Enrich combined_funds.xlsx into combined_funds_1.xlsx
  fundscrape

  # Try the first 5 funds with a visible browser and dump each page as markdown
  fundscrape --limit 5 --showui --dump-dir dumps --log-level debug

  # Use a config file and plain HTTP instead of Chrome
  fundscrape --config fundscrape.yaml --engine static`,
		Args:         cobra.NoArgs,
		RunE:         run,
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input workbook (default combined_funds.xlsx)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output workbook (default combined_funds_1.xlsx)")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet name (default first sheet)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Process at most this many rows (0 for all)")
	cmd.Flags().StringVar(&engine, "engine", "", "Page engine: rod (headless Chrome) or static (plain HTTP)")
	cmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	cmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890)")
	cmd.Flags().StringVar(&dumpDir, "dump-dir", "", "Write every fund page to this directory for inspection")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics here when done")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&showProg, "progress", false, "Show a progress spinner")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	profile, ok := scraper.Get(cfg.Scrape.Site)
	if !ok {
		return fmt.Errorf("unknown site: %s (known: %s)", cfg.Scrape.Site, strings.Join(scraper.Names(), ", "))
	}

	table, err := sheet.Open(cfg.Input.Path, cfg.Input.Sheet)
	if err != nil {
		logger.Error("could not load input", "path", cfg.Input.Path, "err", err)
		return err
	}
	defer table.Close()

	if err := table.Widen(cfg.ColumnList()...); err != nil {
		logger.Error("input does not fit the column map", "path", cfg.Input.Path, "err", err)
		return err
	}
	logger.Info("loaded funds", "path", cfg.Input.Path, "sheet", table.Sheet(), "rows", table.Len())

	opts := []batch.Option{
		batch.WithMetrics(metrics.New()),
		batch.WithProgress(newProgress(cfg.Progress)),
	}
	var dumper *output.Dumper
	if cfg.Debug.DumpDir != "" {
		dumper = &output.Dumper{Dir: cfg.Debug.DumpDir, Format: cfg.Debug.DumpFormat}
	}
	opts = append(opts, batch.WithPageHook(output.Hook(logger.With("component", "inspect"), profile.Labels(), dumper)))

	runner := batch.New(
		batch.Config{
			KeyColumn:         cfg.Input.KeyColumn,
			Columns:           cfg.Columns,
			BaseURL:           cfg.Scrape.BaseURL,
			RestartEvery:      cfg.Batch.RestartEvery,
			CheckpointEvery:   cfg.Batch.CheckpointEvery,
			PolitenessMin:     cfg.Batch.PolitenessMin,
			PolitenessMax:     cfg.Batch.PolitenessMax,
			RequestsPerMinute: cfg.Batch.RequestsPerMinute,
			Limit:             cfg.Batch.Limit,
			OutputPath:        cfg.Output.Path,
			MetricsFile:       cfg.Metrics.File,
		},
		table,
		profile,
		newFactory(cfg.Browser),
		scraper.RowConfig{
			MaxRetries:  cfg.Scrape.MaxRetries,
			RetryMin:    cfg.Scrape.RetryMin,
			RetryMax:    cfg.Scrape.RetryMax,
			SettleDelay: cfg.Scrape.SettleDelay,
			ReadyXPath:  cfg.Scrape.ReadyXPath,
		},
		logger,
		opts...,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := runner.Run(ctx)
	if sum.Aborted != nil {
		logger.Error("run stopped early; results up to the failure were saved", "err", sum.Aborted)
	}
	return err
}

// applyFlags overlays flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("input") {
		cfg.Input.Path = inputPath
	}
	if f.Changed("output") {
		cfg.Output.Path = outputPath
	}
	if f.Changed("sheet") {
		cfg.Input.Sheet = sheetName
	}
	if f.Changed("limit") {
		cfg.Batch.Limit = limit
	}
	if f.Changed("engine") {
		cfg.Browser.Engine = engine
	}
	if f.Changed("showui") {
		cfg.Browser.Headless = !showUI
	}
	if f.Changed("proxy") {
		cfg.Browser.ProxyURL = proxyURL
	}
	if f.Changed("dump-dir") {
		cfg.Debug.DumpDir = dumpDir
	}
	if f.Changed("metrics-file") {
		cfg.Metrics.File = metricsFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if f.Changed("progress") {
		cfg.Progress = showProg
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	formatter := log.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Formatter:       formatter,
	}), nil
}

// newProgress draws on stdout so the spinner does not interleave with log
// lines on stderr.
func newProgress(enabled bool) *progress.Spinner {
	return progress.New(os.Stdout, enabled)
}

// newFactory returns a session factory for the configured engine.
func newFactory(cfg config.BrowserConfig) scraper.Factory {
	bc := browser.Config{
		Headless:          cfg.Headless,
		NoSandbox:         cfg.NoSandbox,
		ProxyURL:          cfg.ProxyURL,
		Bin:               cfg.Bin,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		WaitTime:          cfg.WaitTime,
	}

	if cfg.Engine == config.EngineStatic {
		return func(context.Context) (scraper.Session, error) {
			s, err := browser.NewStatic(bc)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return func(context.Context) (scraper.Session, error) {
		b, err := browser.New(bc)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}
