package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"fundscrape/internal/scraper"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var _ scraper.Session = (*Static)(nil)

var (
	errNoDocument = errors.New("no document loaded")
	errClosed     = errors.New("session closed")
)

// Static is a Session that fetches server-rendered HTML over plain HTTP and
// evaluates XPath against it. Pages that need JavaScript render incompletely.
type Static struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	raw    string
	doc    *html.Node
	closed bool
}

// NewStatic creates a Static session using cfg's user agent, proxy and
// navigation timeout.
func NewStatic(cfg Config) (*Static, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Static{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   cfg.NavigationTimeout,
		},
		userAgent: cfg.UserAgent,
	}, nil
}

func (s *Static) Navigate(ctx context.Context, target string) error {
	if !s.IsAlive(ctx) {
		return errClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to navigate: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return s.Load(string(body))
}

// Load replaces the current document with src.
func (s *Static) Load(src string) error {
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	s.mu.Lock()
	s.raw, s.doc = src, doc
	s.mu.Unlock()
	return nil
}

func (s *Static) FindAll(_ context.Context, expr string) ([]string, error) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return nil, errNoDocument
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", expr, err)
	}
	texts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		texts = append(texts, htmlquery.InnerText(n))
	}
	return texts, nil
}

// WaitFor checks once: a static document does not change after loading.
func (s *Static) WaitFor(ctx context.Context, expr string) error {
	found, err := s.FindAll(ctx, expr)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("no element matches %q", expr)
	}
	return nil
}

func (s *Static) IsAlive(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// ClearState swaps in an empty cookie jar.
func (s *Static) ClearState(context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	s.client.Jar = jar
	return nil
}

func (s *Static) HTML(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", errNoDocument
	}
	return s.raw, nil
}

func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}
