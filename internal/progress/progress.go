// Package progress shows a one-line terminal spinner for the batch.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner reports row progress. A nil *Spinner is valid and does nothing.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer
}

// New returns a Spinner drawing to w, or nil when disabled.
func New(w io.Writer, enabled bool) *Spinner {
	if !enabled {
		return nil
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	return &Spinner{s: s, w: w}
}

// Writer is where the spinner draws.
func (p *Spinner) Writer() io.Writer {
	if p == nil {
		return nil
	}
	return p.w
}

// Update shows done/total and the key being worked on.
func (p *Spinner) Update(done, total int, key string) {
	if p == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %d/%d %s", done, total, key)
	p.s.Unlock()
	if !p.s.Active() {
		p.s.Start()
	}
}

// Status returns the text currently shown next to the spinner.
func (p *Spinner) Status() string {
	if p == nil {
		return ""
	}
	p.s.Lock()
	defer p.s.Unlock()
	return p.s.Suffix
}

func (p *Spinner) Stop() {
	if p == nil {
		return
	}
	p.s.Stop()
}
