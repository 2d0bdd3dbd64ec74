// Package output inspects rendered fund pages and dumps them for offline
// pattern tuning.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fundscrape/internal/scraper"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// PageStats summarises the structure of a rendered page.
type PageStats struct {
	Title  string
	Lists  int // li elements
	Spans  int
	Cells  int // td elements
	Labels map[string]bool
}

// Missing returns the expected labels absent from the page, in input order.
func (p PageStats) Missing(labels []string) []string {
	var out []string
	for _, l := range labels {
		if !p.Labels[l] {
			out = append(out, l)
		}
	}
	return out
}

// Inspect counts the elements the field patterns anchor on and checks which
// labels occur in the document.
func Inspect(html string, labels []string) (PageStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageStats{}, fmt.Errorf("failed to parse html: %w", err)
	}

	p := PageStats{
		Title:  strings.TrimSpace(doc.Find("title").First().Text()),
		Lists:  doc.Find("li").Length(),
		Spans:  doc.Find("span").Length(),
		Cells:  doc.Find("td").Length(),
		Labels: make(map[string]bool, len(labels)),
	}
	text := doc.Text()
	for _, l := range labels {
		p.Labels[l] = strings.Contains(text, l)
	}
	return p, nil
}

// Markdown converts a page to GitHub flavoured markdown. Tables are kept as
// tables, which is where most fund fields live.
func Markdown(html string) (string, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	conv.Remove("script", "style", "noscript")

	out, err := conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return out, nil
}

// Format renders html as "html" or "markdown".
func Format(format, html string) (string, error) {
	switch strings.ToLower(format) {
	case "html":
		return html, nil
	case "markdown", "md":
		return Markdown(html)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Dumper writes one file per fund into Dir.
type Dumper struct {
	Dir    string
	Format string // html or markdown
}

// Path returns the file a key is dumped to.
func (d *Dumper) Path(key string) string {
	ext := ".md"
	if strings.EqualFold(d.Format, "html") {
		ext = ".html"
	}
	name := unsafeName.ReplaceAllString(key, "_")
	if name == "" || strings.Trim(name, ".") == "" {
		name = "_"
	}
	return filepath.Join(d.Dir, name+ext)
}

// Dump renders html and writes it under Dir, creating Dir if needed.
func (d *Dumper) Dump(key, html string) (string, error) {
	format := d.Format
	if format == "" {
		format = "markdown"
	}
	body, err := Format(format, html)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}
	path := d.Path(key)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}
	return path, nil
}

// Hook returns a page hook that logs PageStats for every fund page at debug
// level and, when dumper is non-nil, dumps the page. Failures are logged and
// never affect the row.
func Hook(logger *log.Logger, labels []string, dumper *Dumper) scraper.PageHook {
	return func(ctx context.Context, key string, s scraper.Session) {
		if dumper == nil && logger.GetLevel() > log.DebugLevel {
			return
		}

		html, err := s.HTML(ctx)
		if err != nil {
			logger.Debug("could not read page source", "code", key, "err", err)
			return
		}

		if p, err := Inspect(html, labels); err == nil {
			logger.Debug("page structure",
				"code", key,
				"title", p.Title,
				"li", p.Lists,
				"span", p.Spans,
				"td", p.Cells,
				"missing_labels", p.Missing(labels),
			)
		}

		if dumper != nil {
			path, err := dumper.Dump(key, html)
			if err != nil {
				logger.Warn("could not dump page", "code", key, "err", err)
				return
			}
			logger.Debug("page dumped", "code", key, "path", path)
		}
	}
}
