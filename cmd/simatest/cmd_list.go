package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"simatest/internal/runner"
	"simatest/internal/tactile"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured targets and how each would run",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	runners := runner.NewRunners(tactile.NewDirectExecutor(), runner.Options{
		Interpreter:    s.interpreter(cmd.Context()),
		DoctestModule:  s.cfg.Python.DoctestModule,
		SelfHostMarker: s.cfg.Python.SelfHostMarker,
		Root:           s.root,
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSTRATEGY\tCOMMAND")
	for _, t := range s.targets {
		c, strategy := runners[t.Kind].Plan(t)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Kind, strategy, c.CommandString())
	}
	return w.Flush()
}
