// Package scrapertest provides an in-memory scraper.Session for tests.
package scrapertest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"fundscrape/internal/scraper"
)

// Page maps lookup expressions to the texts they match.
type Page map[string][]string

// Session is a fake scraper.Session backed by a URL -> Page table.
type Session struct {
	mu sync.Mutex

	Pages map[string]Page
	// NavigateErr, when set, is consulted on every Navigate call.
	NavigateErr func(url string) error
	// OnNavigate runs before every Navigate (after NavigateErr).
	OnNavigate func(url string)
	Dead       bool

	URL         string
	Navigations int
	Clears      int
	Closed      bool
	Queries     []string
}

var _ scraper.Session = (*Session)(nil)

// NewSession returns a live Session serving pages.
func NewSession(pages map[string]Page) *Session {
	return &Session{Pages: pages}
}

func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	s.Navigations++
	check, hook := s.NavigateErr, s.OnNavigate
	s.mu.Unlock()

	if check != nil {
		if err := check(url); err != nil {
			return err
		}
	}
	if hook != nil {
		hook(url)
	}

	s.mu.Lock()
	s.URL = url
	s.mu.Unlock()
	return nil
}

func (s *Session) FindAll(_ context.Context, expr string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, expr)
	if strings.HasSuffix(expr, "[") {
		return nil, errors.New("invalid expression")
	}
	return s.Pages[s.URL][expr], nil
}

func (s *Session) WaitFor(ctx context.Context, expr string) error {
	found, err := s.FindAll(ctx, expr)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return errors.New("element not found")
	}
	return nil
}

func (s *Session) IsAlive(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.Dead && !s.Closed
}

func (s *Session) ClearState(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clears++
	return nil
}

func (s *Session) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "<html><body>" + s.URL + "</body></html>", nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Factory hands out Sessions built by New and records each one.
type Factory struct {
	mu       sync.Mutex
	New      func() *Session
	Err      error
	Sessions []*Session
}

// Func adapts f to scraper.Factory.
func (f *Factory) Func() scraper.Factory {
	return func(context.Context) (scraper.Session, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.Err != nil {
			return nil, f.Err
		}
		s := f.New()
		f.Sessions = append(f.Sessions, s)
		return s, nil
	}
}

// Created returns how many sessions the factory produced.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sessions)
}
