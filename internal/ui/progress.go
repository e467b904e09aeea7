package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// Progress draws a single-line progress bar, redrawn in place.
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	bar   progress.Model
	label string
	total int
	done  int
}

// NewProgress returns a bar for total steps.
func NewProgress(out io.Writer, label string, total int) *Progress {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	return &Progress{out: out, bar: bar, label: label, total: total}
}

// Increment advances the bar by one step. Safe for concurrent use.
func (p *Progress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.draw()
}

// Percent returns the completed fraction.
func (p *Progress) Percent() float64 {
	if p.total <= 0 {
		return 1
	}
	return float64(p.done) / float64(p.total)
}

func (p *Progress) draw() {
	fmt.Fprintf(p.out, "\r%s %s %d/%d", p.label, p.bar.ViewAs(p.Percent()), p.done, p.total)
}

// Finish ends the bar line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draw()
	fmt.Fprintln(p.out)
}
