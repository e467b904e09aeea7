// Package ui renders the user-facing report text of ntuplesub: banners,
// the status report, tables, the create progress bar and the submission
// prompt. Diagnostics go through the logging package instead.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors.
var (
	Destructive = lipgloss.Color("#e53935") // Red
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Info        = lipgloss.Color("#2196F3") // Blue
	Muted       = lipgloss.Color("#6b7785")
)

// RuleWidth is the width of the separator rule.
const RuleWidth = 80

// Styles holds the lipgloss styles used for report output.
type Styles struct {
	Fatal   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Path    lipgloss.Style
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the report styles.
func DefaultStyles() Styles {
	return Styles{
		Fatal:   lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(Warning),
		Success: lipgloss.NewStyle().Foreground(Success),
		Path:    lipgloss.NewStyle().Foreground(Info),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(Info),
		Bold:    lipgloss.NewStyle().Bold(true),
		Body:    lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
	}
}

// Rule returns the separator line.
func Rule() string {
	return strings.Repeat("-", RuleWidth)
}

// Printer writes styled report text.
type Printer struct {
	Out    io.Writer
	Styles Styles
}

// NewPrinter returns a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{Out: out, Styles: DefaultStyles()}
}

// Printf writes formatted text.
func (p *Printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(p.Out, format, args...)
}

// Println writes a line.
func (p *Printer) Println(s string) {
	fmt.Fprintln(p.Out, s)
}

// Rule writes the separator line.
func (p *Printer) Rule() {
	p.Println(Rule())
}

// Fatal writes a FATAL banner.
func (p *Printer) Fatal(msg string) {
	p.Println(p.Styles.Fatal.Render("FATAL: ") + msg)
}

// Warn writes a WARNING banner.
func (p *Printer) Warn(msg string) {
	p.Println(p.Styles.Warning.Render("WARNING: ") + msg)
}

// Done writes a success line naming a created file.
func (p *Printer) Done(what, path string) {
	p.Println(p.Styles.Success.Render("Done: ") + p.Styles.Path.Render(what) + " file created at " + p.Styles.Path.Render(path))
}

// Path renders a path highlighted.
func (p *Printer) Path(path string) string {
	return p.Styles.Path.Render(path)
}
