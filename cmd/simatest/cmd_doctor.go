package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"simatest/internal/store"
	"simatest/internal/tactile/python"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the project root, config, interpreter and targets",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	problems := 0

	fmt.Fprintf(out, "root:         %s\n", s.root)
	if _, err := os.Stat(s.cfgPath); err == nil {
		fmt.Fprintf(out, "config:       %s\n", s.cfgPath)
	} else {
		fmt.Fprintf(out, "config:       %s (not found, using defaults)\n", s.cfgPath)
	}

	executor := s.executor()
	caps := executor.Capabilities()
	fmt.Fprintf(out, "executor:     %s on %s (resource usage: %t)\n", caps.Name, caps.Platform, caps.SupportsResourceUsage)

	candidates := s.cfg.InterpreterCandidates()
	interp, err := python.Locate(cmd.Context(), executor, candidates)
	switch {
	case err != nil:
		problems++
		fmt.Fprintf(out, "interpreter:  MISSING (%v)\n", err)
	case interp.Version == "":
		fmt.Fprintf(out, "interpreter:  %s (version unknown)\n", interp.Path)
	default:
		fmt.Fprintf(out, "interpreter:  %s (Python %s)\n", interp.Path, interp.Version)
	}

	if s.cfg.History.Enabled {
		path := s.cfg.HistoryPath(s.root)
		if h, err := store.Open(s.cfg.History.Driver, path); err != nil {
			problems++
			fmt.Fprintf(out, "history:      ERROR %v\n", err)
		} else {
			h.Close()
			fmt.Fprintf(out, "history:      %s (%s)\n", path, s.cfg.History.Driver)
		}
	} else {
		fmt.Fprintln(out, "history:      disabled")
	}

	fmt.Fprintf(out, "targets:      %d\n", len(s.targets))
	for _, t := range s.targets {
		path := t.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.root, filepath.FromSlash(path))
		}
		status := "ok"
		if _, err := os.Stat(path); err != nil {
			problems++
			status = "MISSING"
		}
		fmt.Fprintf(out, "  %-8s %-9s %s\n", status, t.Kind, t.Path)
	}

	if problems > 0 {
		return &ExitError{Code: exitFailure, Message: fmt.Sprintf("%d problem(s) found", problems)}
	}
	fmt.Fprintln(out, "No problems found.")
	return nil
}
