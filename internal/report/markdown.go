package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"simatest/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// HistoryMarkdown renders a run list as a markdown table.
func HistoryMarkdown(runs []store.RunRecord) string {
	var sb strings.Builder
	sb.WriteString("# Test history\n\n")
	if len(runs) == 0 {
		sb.WriteString("_No runs recorded._\n")
		return sb.String()
	}

	sb.WriteString("| Run | Started | Duration | Result |\n")
	sb.WriteString("|-----|---------|----------|--------|\n")
	for _, r := range runs {
		result := Summary(r.Totals())
		if r.Interrupted {
			result += " (interrupted)"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(timeLayout),
			r.FinishedAt.Sub(r.StartedAt).Round(10*time.Millisecond),
			result)
	}
	return sb.String()
}

// RunMarkdown renders one run with its per-target outcomes.
func RunMarkdown(r store.RunRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run `%s`\n\n", r.ID)
	fmt.Fprintf(&sb, "- **Root:** `%s`\n", r.Root)
	fmt.Fprintf(&sb, "- **Started:** %s\n", r.StartedAt.Local().Format(timeLayout))
	fmt.Fprintf(&sb, "- **Result:** %s\n", Summary(r.Totals()))
	if r.Interrupted {
		sb.WriteString("- **Interrupted:** yes\n")
	}
	sb.WriteString("\n| Kind | Path | Strategy | Status | Time |\n")
	sb.WriteString("|------|------|----------|--------|------|\n")
	for _, o := range r.Outcomes {
		status := "ok"
		if o.ExitCode != 0 || o.Error != "" {
			status = fmt.Sprintf("**failed (%d)**", o.ExitCode)
		}
		fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %dms |\n", o.Kind, o.Path, o.Strategy, status, o.DurationMs)
	}
	return sb.String()
}

// RenderMarkdown renders md for a terminal. If rendering fails the raw
// markdown is returned with the error.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md, fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
