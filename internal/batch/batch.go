// Package batch drives the row loop: one session, one row at a time, with
// periodic session recycling and checkpoints.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"fundscrape/internal/extractor"
	"fundscrape/internal/metrics"
	"fundscrape/internal/progress"
	"fundscrape/internal/scraper"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// ErrSave marks a failed final save.
var ErrSave = errors.New("failed to save results")

// Table is the spreadsheet being enriched. Rows are zero-based data rows.
type Table interface {
	Len() int
	Key(row, col int) string
	Set(row, col int, value string) error
	Save(path string) error
}

// Config controls the row loop.
type Config struct {
	KeyColumn int
	Columns   map[extractor.Field]int
	BaseURL   string

	RestartEvery    int
	CheckpointEvery int
	PolitenessMin   time.Duration
	PolitenessMax   time.Duration
	// RequestsPerMinute caps row starts; 0 disables the limiter.
	RequestsPerMinute float64
	// Limit caps the number of rows processed; 0 means all.
	Limit int

	OutputPath  string
	MetricsFile string
}

// Summary describes a finished run.
type Summary struct {
	Rows        int // data rows in the sheet
	Total       int // rows scheduled, Rows capped by Limit
	Processed   int // rows whose fields were written
	Succeeded   int // processed rows whose category is not "Error"
	Recycles    int
	Checkpoints int
	Interrupted bool
	// Aborted is set when the loop stopped on an unexpected failure.
	Aborted error
}

// Runner enriches a Table.
type Runner struct {
	cfg     Config
	table   Table
	profile scraper.Profile
	manager *scraper.Manager
	rows    *scraper.RowScraper
	logger  *log.Logger

	metrics  *metrics.Recorder
	progress *progress.Spinner
	limiter  *rate.Limiter
	sleep    scraper.SleepFunc
	jitter   func() float64
	rowOpts  []scraper.RowOption
}

// Option customises a Runner.
type Option func(*Runner)

// WithMetrics records the run into m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithProgress reports rows to p.
func WithProgress(p *progress.Spinner) Option {
	return func(r *Runner) { r.progress = p }
}

// WithSleep replaces every delay of the run: politeness, settle and backoff.
func WithSleep(fn scraper.SleepFunc) Option {
	return func(r *Runner) {
		r.sleep = fn
		r.rowOpts = append(r.rowOpts, scraper.WithSleep(fn))
	}
}

// WithJitter replaces the [0,1) source of every randomized delay.
func WithJitter(fn func() float64) Option {
	return func(r *Runner) {
		r.jitter = fn
		r.rowOpts = append(r.rowOpts, scraper.WithJitter(fn))
	}
}

// WithPageHook runs h once per row on the rendered page.
func WithPageHook(h scraper.PageHook) Option {
	return func(r *Runner) { r.rowOpts = append(r.rowOpts, scraper.WithPageHook(h)) }
}

// New creates a Runner. Sessions come from factory; each row is scraped
// with rowCfg against profile's field specs.
func New(cfg Config, table Table, profile scraper.Profile, factory scraper.Factory, rowCfg scraper.RowConfig, logger *log.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		table:   table,
		profile: profile,
		manager: scraper.NewManager(factory, logger),
		logger:  logger,
		sleep:   scraper.Sleep,
		jitter:  rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	r.rows = scraper.NewRowScraper(rowCfg, profile.Specs(), logger, r.rowOpts...)
	return r
}

// Run processes rows in order until done, cancelled or aborted, then always
// disposes the session and saves the table. The returned error is non-nil
// only when the final save fails, and then wraps ErrSave.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	rows := r.table.Len()
	total := rows
	if r.cfg.Limit > 0 && r.cfg.Limit < total {
		total = r.cfg.Limit
	}
	sum := Summary{Rows: rows, Total: total}

	if err := r.loop(ctx, &sum); err != nil {
		sum.Aborted = err
		r.logger.Error("run aborted", "processed", sum.Processed, "err", err)
	}

	return sum, r.finalize(&sum)
}

func (r *Runner) loop(ctx context.Context, sum *Summary) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic at row %d: %v", sum.Processed+1, p)
		}
	}()

	if _, err := r.manager.Acquire(ctx); err != nil {
		return err
	}

	for idx := 0; idx < sum.Total; idx++ {
		if ctx.Err() != nil {
			sum.Interrupted = true
			r.logger.Warn("interrupted, stopping", "processed", sum.Processed, "remaining", sum.Total-idx)
			return nil
		}

		// A row that has started runs to completion.
		rowCtx := context.WithoutCancel(ctx)

		if err := r.ensureSession(rowCtx, idx, sum); err != nil {
			return err
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				sum.Interrupted = true
				return nil
			}
		}

		if err := r.processRow(rowCtx, idx, sum); err != nil {
			return err
		}

		_ = r.sleep(ctx, scraper.Uniform(r.cfg.PolitenessMin, r.cfg.PolitenessMax, r.jitter()))

		if (idx+1)%r.cfg.CheckpointEvery == 0 {
			r.checkpoint(idx+1, sum)
		}
	}
	return nil
}

// ensureSession recycles on the restart interval and replaces a session
// that failed its liveness check.
func (r *Runner) ensureSession(ctx context.Context, idx int, sum *Summary) error {
	var reason string
	switch {
	case idx > 0 && idx%r.cfg.RestartEvery == 0:
		reason = "interval"
	case !r.manager.Alive(ctx):
		reason = "not alive"
	default:
		return nil
	}

	if _, err := r.manager.Recycle(ctx); err != nil {
		return err
	}
	sum.Recycles++
	r.metrics.Recycle()
	r.logger.Info("restarted browser", "index", idx, "reason", reason)
	return nil
}

func (r *Runner) processRow(ctx context.Context, idx int, sum *Summary) error {
	key := r.table.Key(idx, r.cfg.KeyColumn)
	url := r.profile.PageURL(r.cfg.BaseURL, key)

	start := time.Now()
	out := r.rows.Scrape(ctx, r.manager.Current(), key, url)

	for _, f := range extractor.Fields {
		col, ok := r.cfg.Columns[f]
		if !ok {
			continue
		}
		if err := r.table.Set(idx, col, out.Result.Get(f)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", idx+1, err)
		}
	}

	sum.Processed++
	if out.Result.Get(extractor.Category) != extractor.Error {
		sum.Succeeded++
	}

	r.logger.Info(fmt.Sprintf("[%d/%d] %s", idx+1, sum.Total, key),
		"category", out.Result.Get(extractor.Category),
		"investors", out.Result.Get(extractor.InvestorCount),
		"market_share", out.Result.Get(extractor.MarketShare),
		"risk", out.Result.Get(extractor.RiskValue),
		"status", out.Result.Get(extractor.FundStatus),
	)
	r.metrics.Row(out.Result, out.Attempts, time.Since(start))
	r.progress.Update(idx+1, sum.Total, key)
	return nil
}

func (r *Runner) checkpoint(done int, sum *Summary) {
	if err := r.table.Save(r.cfg.OutputPath); err != nil {
		r.logger.Error("failed to save progress", "index", done, "err", err)
		return
	}
	sum.Checkpoints++
	r.metrics.Checkpoint()
	r.logger.Info("progress saved", "index", done, "path", r.cfg.OutputPath)
}

func (r *Runner) finalize(sum *Summary) error {
	r.progress.Stop()
	r.manager.Dispose()

	var saveErr error
	if err := r.table.Save(r.cfg.OutputPath); err != nil {
		saveErr = fmt.Errorf("%w: %w", ErrSave, err)
		r.logger.Error("could not save results", "path", r.cfg.OutputPath, "err", err)
	} else {
		r.logger.Info("results saved", "path", r.cfg.OutputPath)
	}

	if r.cfg.MetricsFile != "" {
		if err := r.metrics.WriteFile(r.cfg.MetricsFile); err != nil {
			r.logger.Warn("could not write metrics", "err", err)
		}
	}

	// Reported against the whole sheet; a limited run shows what it left out.
	r.logger.Info(fmt.Sprintf("Successfully scraped %d/%d funds", sum.Succeeded, sum.Rows),
		"scheduled", sum.Total,
		"processed", sum.Processed,
	)
	return saveErr
}
