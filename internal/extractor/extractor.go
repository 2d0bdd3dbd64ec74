package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Sentinel values written in place of a field that could not be extracted.
const (
	NotFound = "Not found" // every candidate expression missed
	Error    = "Error"     // the page could not be scraped at all
)

// Field names a disclosure value on the fund page.
type Field string

const (
	Category      Field = "category"
	InvestorCount Field = "investor_count"
	MarketShare   Field = "market_share"
	RiskValue     Field = "risk_value"
	FundStatus    Field = "fund_status"
)

// Fields lists every field in output order.
var Fields = []Field{Category, InvestorCount, MarketShare, RiskValue, FundStatus}

// Valid reports whether f is one of Fields.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Finder evaluates a lookup expression against the loaded page and returns
// the text of every matched element.
type Finder interface {
	FindAll(ctx context.Context, expr string) ([]string, error)
}

// Spec is the fallback chain for one field. Patterns are tried in order.
type Spec struct {
	Field    Field
	Patterns []string
}

// Result maps each field to its extracted text or a sentinel.
type Result map[Field]string

// Filled returns a Result with every field set to v.
func Filled(v string) Result {
	r := make(Result, len(Fields))
	for _, f := range Fields {
		r[f] = v
	}
	return r
}

// Get returns the value for f, NotFound when absent or empty.
func (r Result) Get(f Field) string {
	if v, ok := r[f]; ok && v != "" {
		return v
	}
	return NotFound
}

// Extractor runs fallback chains against a Finder.
type Extractor struct {
	logger *log.Logger
}

// NewExtractor creates a new Extractor instance
func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the trimmed text of the first match of the first pattern
// that yields non-empty text. Later patterns are not evaluated once one wins.
func (e *Extractor) Extract(ctx context.Context, f Finder, patterns []string) string {
	for _, expr := range patterns {
		texts, err := safeFindAll(ctx, f, expr)
		if err != nil {
			e.logger.Debug("lookup failed", "xpath", expr, "err", err)
			continue
		}
		for _, t := range texts {
			if t = strings.TrimSpace(t); t != "" {
				e.logger.Debug("lookup matched", "xpath", expr, "value", t)
				return t
			}
		}
	}
	return NotFound
}

// ExtractAll runs every spec and returns a complete Result.
func (e *Extractor) ExtractAll(ctx context.Context, f Finder, specs []Spec) Result {
	res := Filled(NotFound)
	for _, s := range specs {
		res[s.Field] = e.Extract(ctx, f, s.Patterns)
	}
	return res
}

func safeFindAll(ctx context.Context, f Finder, expr string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lookup panicked: %v", r)
		}
	}()
	return f.FindAll(ctx, expr)
}
