package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"simatest/internal/logging"
)

var (
	// Global flags
	workspaceDir string
	configPath   string
	verbose      bool
	strict       bool
	jsonOutput   bool
	timeout      time.Duration
)

// ExitError carries a specific process exit code. An empty Message prints
// nothing.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	exitFailure = 1 // root not found, failed tests under --strict
	exitUsage   = 2 // bad flags or config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "simatest [name...]",
	Short: "Run the CAM-SIMA Python doctests and unit tests",
	Long: `simatest locates the CAM-SIMA sandbox (the directory holding cime_config,
from the top level or the test directory beneath it) and runs every configured
doctest and unittest module in order, one process at a time.

Each target prints a progress line; each failure prints an ERROR line; the
run ends with "K out of N tests FAILED" or "All N tests PASSED!".

By default the exit status is 0 even when tests fail. Pass --strict (or set
execution.strict_exit) to exit 1 on any failure.

Run without arguments to run every target; name targets to run a subset.`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runTests,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "w", "", "Directory to start the project root search from (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <root>/.simatest.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Exit 1 when any test fails")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON on stdout")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-target timeout (0 = config value)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: exitUsage, Message: fmt.Sprintf("%v\n\n%s", err, cmd.UsageString())}
	})

	rootCmd.AddCommand(
		runCmd,
		listCmd,
		historyCmd,
		watchCmd,
		initCmd,
		doctorCmd,
	)
}

// initLogging sets up logging before the config is known. The session
// re-initializes it from the loaded config.
func initLogging(cmd *cobra.Command, args []string) error {
	opts := logging.Options{Level: os.Getenv("SIMATEST_LOG_LEVEL")}
	if verbose {
		opts.Level = "debug"
	}
	if err := logging.Initialize(opts); err != nil {
		return &ExitError{Code: exitUsage, Message: fmt.Sprintf("failed to initialize logging: %v", err)}
	}
	return nil
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(stderr, exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitFailure
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
