package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"simatest/internal/logging"
	"simatest/internal/runner"
	"simatest/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [name...]",
	Short: "Run the tests, then rerun them whenever a Python file changes",
	Long: `Runs the selected targets once, then watches the directories holding them
and reruns the whole selection after edits to .py files settle. Runs never
overlap; edits made during a run trigger one more run afterwards.

Stop with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	targets, err := runner.Select(s.targets, args)
	if err != nil {
		return &ExitError{Code: exitUsage, Message: err.Error()}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(s.root, targets, s.cfg.GetDebounce())
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	out := cmd.ErrOrStderr()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		w.Stop()
		return nil
	})

	g.Go(func() error {
		s.runSuite(gctx, cmd, targets)
		fmt.Fprintf(out, "Watching %d directories for changes (Ctrl-C to stop)\n", len(w.Dirs()))
		for change := range w.Changes() {
			if gctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "\nChanged: %s\n", relPaths(s.root, change.Paths))
			s.runSuite(gctx, cmd, targets)
		}
		if gctx.Err() == nil {
			return errors.New("file watcher stopped unexpectedly")
		}
		return nil
	})

	err = g.Wait()
	stats := w.Stats()
	logging.Get(logging.CategoryWatch).Infow("watch finished",
		"events", stats.Events, "triggers", stats.Triggers, "errors", stats.Errors)
	return err
}

func relPaths(root string, paths []string) string {
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		if r, err := filepath.Rel(root, p); err == nil {
			p = r
		}
		rel = append(rel, p)
	}
	return strings.Join(rel, ", ")
}
