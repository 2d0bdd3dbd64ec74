package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fundscrape/internal/scraper"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

var _ scraper.Session = (*Browser)(nil)

// Config configures a Chrome session.
type Config struct {
	Headless          bool
	NoSandbox         bool
	ProxyURL          string
	Bin               string // Chrome binary; empty lets rod find or download one
	UserAgent         string
	NavigationTimeout time.Duration
	WaitTime          time.Duration // implicit wait for element lookups
}

// Browser is a single Chrome process with one stealth tab.
type Browser struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// New launches Chrome and opens a tab with automation fingerprints hidden.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-plugins").
		Delete(flags.Flag("enable-automation"))

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}

	url, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b := &Browser{cfg: cfg, browser: browser, launcher: l}

	page, err := stealth.Page(browser)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	b.page = page

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return b, nil
}

// Navigate loads url and waits for the load event.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	p := b.tab(ctx, b.cfg.NavigationTimeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// FindAll returns the text of every element matching the XPath expression.
// It does not wait: no match is an empty result, not an error.
func (b *Browser) FindAll(ctx context.Context, xpath string) ([]string, error) {
	elements, err := b.tab(ctx, b.cfg.WaitTime).ElementsX(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to find elements %q: %w", xpath, err)
	}

	texts := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// WaitFor blocks until xpath matches or WaitTime elapses.
func (b *Browser) WaitFor(ctx context.Context, xpath string) error {
	if _, err := b.tab(ctx, b.cfg.WaitTime).ElementX(xpath); err != nil {
		return fmt.Errorf("failed to wait for %q: %w", xpath, err)
	}
	return nil
}

// IsAlive asks the tab for its target info; a crashed renderer or closed
// browser fails the call.
func (b *Browser) IsAlive(ctx context.Context) bool {
	if b.page == nil {
		return false
	}
	return alive(b.tab(ctx, 5*time.Second).Info())
}

// alive reports whether a target info call got through. Chrome's error page
// (chrome-error://) after a failed navigation still counts: the tab answers
// and can be navigated again.
func alive(info *proto.TargetTargetInfo, err error) bool {
	return err == nil && info != nil
}

// ClearState drops cookies for the whole browser and empties web storage of
// the current origin.
func (b *Browser) ClearState(ctx context.Context) error {
	p := b.tab(ctx, b.cfg.WaitTime)
	if err := (proto.NetworkClearBrowserCookies{}).Call(p); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	if _, err := p.Eval(`() => { try { localStorage.clear(); sessionStorage.clear(); } catch (e) {} }`); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

// HTML returns the rendered document.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	html, err := b.tab(ctx, b.cfg.WaitTime).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page html: %w", err)
	}
	return html, nil
}

// tab scopes the page to ctx, bounded by d when d is positive.
func (b *Browser) tab(ctx context.Context, d time.Duration) *rod.Page {
	p := b.page.Context(ctx)
	if d > 0 {
		p = p.Timeout(d)
	}
	return p
}

// Close shuts down the tab and the browser process. It is safe to call more
// than once and on a browser whose renderer already crashed.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if b.page != nil {
			_ = b.page.Close()
		}
		if b.browser != nil {
			b.closeErr = b.browser.Close()
		}
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher.Cleanup()
		}
	})
	return b.closeErr
}
