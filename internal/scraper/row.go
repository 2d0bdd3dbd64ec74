package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"fundscrape/internal/extractor"

	"github.com/charmbracelet/log"
)

// RowConfig controls a single row scrape.
type RowConfig struct {
	MaxRetries  int           // retries after the first attempt
	RetryMin    time.Duration // backoff lower bound
	RetryMax    time.Duration // backoff upper bound
	SettleDelay time.Duration // fixed wait after navigation for client-side rendering
	ReadyXPath  string        // optional element to wait for after settling
}

// Outcome is the result of scraping one row.
type Outcome struct {
	Result      extractor.Result
	Attempts    int
	SessionDead bool
	Err         error // last attempt error, nil on success
}

// PageHook is called once per row, on the attempt that reaches extraction.
type PageHook func(ctx context.Context, key string, s Session)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RowScraper scrapes one row's page with bounded retries.
type RowScraper struct {
	cfg       RowConfig
	specs     []extractor.Spec
	extractor *extractor.Extractor
	logger    *log.Logger
	sleep     SleepFunc
	jitter    func() float64
	hook      PageHook
}

// RowOption customises a RowScraper.
type RowOption func(*RowScraper)

// WithSleep replaces the sleep used for settle and backoff delays.
func WithSleep(fn SleepFunc) RowOption {
	return func(s *RowScraper) { s.sleep = fn }
}

// WithJitter replaces the [0,1) source used for randomized backoff.
func WithJitter(fn func() float64) RowOption {
	return func(s *RowScraper) { s.jitter = fn }
}

// WithPageHook installs a hook run once per row on the rendered page, whichever
// attempt gets there.
func WithPageHook(h PageHook) RowOption {
	return func(s *RowScraper) { s.hook = h }
}

// NewRowScraper creates a RowScraper for the given field specs.
func NewRowScraper(cfg RowConfig, specs []extractor.Spec, logger *log.Logger, opts ...RowOption) *RowScraper {
	s := &RowScraper{
		cfg:       cfg,
		specs:     specs,
		extractor: extractor.NewExtractor(logger),
		logger:    logger,
		sleep:     Sleep,
		jitter:    rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape visits url and extracts every field. It never returns a partial
// Result: after MaxRetries failed retries every field is extractor.Error.
func (s *RowScraper) Scrape(ctx context.Context, sess Session, key, url string) Outcome {
	var out Outcome
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		out.Attempts = attempt + 1

		res, err := s.attempt(ctx, sess, key, url, attempt)
		if err == nil {
			out.Result = res
			out.Err = nil
			return out
		}
		out.Err = err
		if errors.Is(err, ErrSessionDead) {
			out.SessionDead = true
		}

		if attempt < s.cfg.MaxRetries {
			s.logger.Warn("retrying fund",
				"code", key,
				"attempt", fmt.Sprintf("%d/%d", attempt+1, s.cfg.MaxRetries),
				"err", err,
			)
			_ = s.sleep(ctx, s.backoff())
		}
	}

	s.logger.Error("failed to scrape fund",
		"code", key,
		"retries", s.cfg.MaxRetries,
		"err", out.Err,
	)
	out.Result = extractor.Filled(extractor.Error)
	return out
}

func (s *RowScraper) attempt(ctx context.Context, sess Session, key, url string, attempt int) (extractor.Result, error) {
	if !IsAlive(ctx, sess) {
		s.logger.Warn("session crashed, needs restart", "code", key)
		return nil, ErrSessionDead
	}

	s.logger.Debug("navigating", "url", url)
	if err := sess.Navigate(ctx, url); err != nil {
		return nil, err
	}

	// Only on the first attempt, so retries keep whatever the page set.
	if attempt == 0 {
		if err := sess.ClearState(ctx); err != nil {
			s.logger.Warn("could not clear cookies/storage", "code", key, "err", err)
		}
	}

	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return nil, err
	}
	if s.cfg.ReadyXPath != "" {
		if err := sess.WaitFor(ctx, s.cfg.ReadyXPath); err != nil {
			s.logger.Debug("ready element did not appear", "code", key, "xpath", s.cfg.ReadyXPath, "err", err)
		}
	}

	if s.hook != nil {
		s.hook(ctx, key, sess)
	}

	return s.extractor.ExtractAll(ctx, sess, s.specs), nil
}

func (s *RowScraper) backoff() time.Duration {
	return Uniform(s.cfg.RetryMin, s.cfg.RetryMax, s.jitter())
}

// Uniform maps f in [0,1) onto [lo, hi].
func Uniform(lo, hi time.Duration, f float64) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(f*float64(hi-lo))
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
