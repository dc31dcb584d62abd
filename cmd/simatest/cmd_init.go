package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"simatest/internal/config"
	"simatest/internal/workspace"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to <root>/.simatest.yaml",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspace.ResolveDir(workspaceDir, workspace.DefaultMarker, workspace.DefaultMaxAscend)
	if err != nil {
		if workspace.IsRootNotFound(err) {
			return &ExitError{Code: exitFailure, Message: "ERROR: " + err.Error()}
		}
		return err
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(root)
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Note: project.marker and project.max_ascend are read only from a file passed with --config.")
	return nil
}
