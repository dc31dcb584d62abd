package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"simatest/internal/report"
	"simatest/internal/store"
)

var (
	historyLimit    int
	historyMarkdown bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs, or one run in detail",
	Long: `Lists recent runs from the history database, newest first. With a run id
(or a unique prefix of one) shows that run's per-target outcomes.

History is recorded only when history.enabled is set in the config or
SIMATEST_HISTORY_DB names a database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 = all)")
	historyCmd.Flags().BoolVar(&historyMarkdown, "markdown", false, "Render as markdown")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	path := s.cfg.HistoryPath(s.root)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No history at %s\n", path)
		return nil
	}

	h, err := store.Open(s.cfg.History.Driver, path)
	if err != nil {
		return err
	}
	defer h.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if len(args) == 1 {
		run, err := h.GetRun(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return &ExitError{Code: exitFailure, Message: err.Error()}
			}
			return err
		}
		switch {
		case jsonOutput:
			return writeJSON(out, run)
		case historyMarkdown:
			return writeMarkdown(out, report.RunMarkdown(*run))
		}
		return writeRun(out, run)
	}

	runs, err := h.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	switch {
	case jsonOutput:
		if runs == nil {
			runs = []store.RunRecord{}
		}
		return writeJSON(out, runs)
	case historyMarkdown:
		return writeMarkdown(out, report.HistoryMarkdown(runs))
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tRESULT")
	for _, r := range runs {
		result := report.Summary(r.Totals())
		if r.Interrupted {
			result += " (interrupted)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), result)
	}
	return w.Flush()
}

func writeRun(out io.Writer, run *store.RunRecord) error {
	fmt.Fprintf(out, "Run %s in %s\n", run.ID, run.Root)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tPATH\tSTRATEGY\tEXIT\tTIME")
	for _, o := range run.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\n", o.Kind, o.Path, o.Strategy, o.ExitCode, o.DurationMs)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, report.Summary(run.Totals()))
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMarkdown renders md with glamour on a terminal and writes it raw
// everywhere else.
func writeMarkdown(out io.Writer, md string) error {
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		rendered, err := report.RenderMarkdown(md, 100)
		if err == nil {
			md = rendered
		}
	}
	_, err := io.WriteString(out, md)
	return err
}
