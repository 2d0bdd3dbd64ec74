package scraper

import (
	"context"
	"errors"

	"fundscrape/internal/extractor"
)

// ErrSessionDead is returned when the liveness check fails before a row.
var ErrSessionDead = errors.New("browser session is not alive")

// Session is one browser (or browser-like) tab owned by the batch driver.
type Session interface {
	Navigate(ctx context.Context, url string) error
	FindAll(ctx context.Context, expr string) ([]string, error)
	// WaitFor blocks until expr matches at least one element.
	WaitFor(ctx context.Context, expr string) error
	IsAlive(ctx context.Context) bool
	// ClearState drops cookies and local/session storage.
	ClearState(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Factory creates a fresh Session.
type Factory func(ctx context.Context) (Session, error)

// Profile describes one target site: how to build a page URL from a row key
// and which fallback chains to run on that page.
type Profile interface {
	Name() string
	PageURL(baseURL, key string) string
	Specs() []extractor.Spec
	// Labels are the anchor texts the page is expected to contain.
	Labels() []string
}
