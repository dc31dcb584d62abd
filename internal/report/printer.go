// Package report renders test runs for humans and machines.
//
// The console lines are a contract: scripts grep for them, so the text is
// fixed and styling is applied only when the writer is a color terminal.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"simatest/internal/runner"
)

// Summary returns the final line of a run.
func Summary(t runner.Totals) string {
	if t.Failed > 0 {
		return fmt.Sprintf("%d out of %d tests FAILED", t.Failed, t.Attempted)
	}
	return fmt.Sprintf("All %d tests PASSED!", t.Attempted)
}

// ProgressLine is printed before a target runs.
func ProgressLine(t runner.Target) string {
	return fmt.Sprintf("Running %s on %s", t.Kind, t.Path)
}

// FailureLine is printed after a target fails.
func FailureLine(o runner.Outcome) string {
	return fmt.Sprintf("ERROR: %s %s failed with status %d", o.Target.Kind, o.Target.Path, o.ExitCode)
}

// Styles holds the lipgloss styles used by Printer.
type Styles struct {
	Progress lipgloss.Style
	Error    lipgloss.Style
	Passed   lipgloss.Style
	Failed   lipgloss.Style
}

// NewStyles builds Styles bound to a renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Progress: r.NewStyle().Faint(true),
		Error:    r.NewStyle().Foreground(lipgloss.Color("#e53935")),
		Passed:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A")),
		Failed:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935")),
	}
}

// Printer is a runner.Reporter that writes the console report.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPrinter returns a Printer whose styling follows w's capabilities.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, styles: NewStyles(lipgloss.NewRenderer(w))}
}

func (p *Printer) println(style lipgloss.Style, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, style.Render(line))
}

// Progress implements runner.Reporter.
func (p *Printer) Progress(t runner.Target) {
	p.println(p.styles.Progress, ProgressLine(t))
}

// Failure implements runner.Reporter.
func (p *Printer) Failure(o runner.Outcome) {
	p.println(p.styles.Error, FailureLine(o))
}

// Summary implements runner.Reporter.
func (p *Printer) Summary(t runner.Totals) {
	style := p.styles.Passed
	if t.Failed > 0 {
		style = p.styles.Failed
	}
	p.println(style, Summary(t))
}
