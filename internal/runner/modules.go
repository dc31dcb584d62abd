package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"simatest/internal/logging"
	"simatest/internal/tactile"
)

// Runner runs one target and reports its outcome. Implementations never
// return errors: a failure to run is an Outcome too.
type Runner interface {
	// Plan returns the command Run would execute and the strategy chosen.
	Plan(target Target) (tactile.Command, Strategy)

	// Run executes the target and blocks until it finishes.
	Run(ctx context.Context, target Target) Outcome
}

// Options are shared by the module runners.
type Options struct {
	// Interpreter is the Python executable (path or name on PATH).
	Interpreter string

	// DoctestModule is the module passed to "-m" for the generic driver.
	DoctestModule string

	// SelfHostMarker marks modules that run their own doctests.
	SelfHostMarker string

	// Root is the project root; processes run there and relative paths
	// resolve against it.
	Root string

	// Timeout per target. Zero means none.
	Timeout time.Duration

	// Stdout and Stderr receive the live output of each test process.
	Stdout io.Writer
	Stderr io.Writer

	// RunID tags every command for audit.
	RunID string
}

func (o Options) withDefaults() Options {
	if o.Interpreter == "" {
		o.Interpreter = "python3"
	}
	if o.DoctestModule == "" {
		o.DoctestModule = "doctest"
	}
	if o.SelfHostMarker == "" {
		o.SelfHostMarker = DefaultSelfHostMarker
	}
	return o
}

// modulePath resolves a target path against the root.
func (o Options) modulePath(target Target) string {
	if filepath.IsAbs(target.Path) || o.Root == "" {
		return target.Path
	}
	return filepath.Join(o.Root, target.Path)
}

// command builds the interpreter invocation for a target.
func (o Options) command(target Target, strategy Strategy, args ...string) tactile.Command {
	cmd := tactile.Command{
		Binary:           o.Interpreter,
		Arguments:        args,
		WorkingDirectory: o.Root,
		Stdout:           o.Stdout,
		Stderr:           o.Stderr,
		RunID:            o.RunID,
		Tags: map[string]string{
			"target":   target.Name,
			"kind":     string(target.Kind),
			"strategy": string(strategy),
		},
	}
	if o.Timeout > 0 {
		cmd.Limits = &tactile.ResourceLimits{TimeoutMs: o.Timeout.Milliseconds()}
	}
	return cmd
}

// execute runs cmd and converts the result into an Outcome.
func execute(ctx context.Context, executor tactile.Executor, target Target, strategy Strategy, cmd tactile.Command) Outcome {
	outcome := Outcome{Target: target, Strategy: strategy, ExitCode: -1}

	result, err := executor.Execute(ctx, cmd)
	if err != nil {
		outcome.Err = fmt.Errorf("cannot run %s: %w", target.Path, err)
		return outcome
	}

	outcome.ExitCode = result.ExitCode
	outcome.Duration = result.Duration
	outcome.Killed = result.Killed
	outcome.Output = result.Output()
	if ru := result.ResourceUsage; ru != nil {
		logging.RunnerDebug("%s used %dms cpu, %d bytes max rss", target.Path, ru.TotalCPUTimeMs(), ru.MaxRSSBytes)
	}
	if result.IsError() {
		outcome.Err = fmt.Errorf("cannot run %s: %s", target.Path, result.Error)
	} else if result.Killed {
		outcome.Err = fmt.Errorf("%s killed: %s", target.Path, result.KillReason)
	}
	return outcome
}

// DoctestRunner runs a module's doctests, either through the module's own
// harness or through the generic doctest driver.
type DoctestRunner struct {
	executor tactile.Executor
	opts     Options
}

// NewDoctestRunner creates a DoctestRunner.
func NewDoctestRunner(executor tactile.Executor, opts Options) *DoctestRunner {
	return &DoctestRunner{executor: executor, opts: opts.withDefaults()}
}

// Strategy inspects the module source. An unreadable module falls back to the
// generic driver, which then reports the problem itself.
func (r *DoctestRunner) Strategy(target Target) Strategy {
	source, err := os.ReadFile(r.opts.modulePath(target))
	if err != nil {
		logging.RunnerWarn("cannot read %s, using generic doctest driver: %v", target.Path, err)
		return GenericDriver
	}
	return DetectStrategy(source, r.opts.SelfHostMarker)
}

// Plan implements Runner.
func (r *DoctestRunner) Plan(target Target) (tactile.Command, Strategy) {
	strategy := r.Strategy(target)
	if strategy == SelfHosted {
		return r.opts.command(target, strategy, target.Path), strategy
	}
	return r.opts.command(target, strategy, "-m", r.opts.DoctestModule, target.Path), strategy
}

// Run implements Runner.
func (r *DoctestRunner) Run(ctx context.Context, target Target) Outcome {
	cmd, strategy := r.Plan(target)
	logging.RunnerDebug("doctest %s via %s", target.Path, strategy)
	return execute(ctx, r.executor, target, strategy, cmd)
}

// UnittestRunner executes a standalone unit-test module directly.
type UnittestRunner struct {
	executor tactile.Executor
	opts     Options
}

// NewUnittestRunner creates a UnittestRunner.
func NewUnittestRunner(executor tactile.Executor, opts Options) *UnittestRunner {
	return &UnittestRunner{executor: executor, opts: opts.withDefaults()}
}

// Plan implements Runner. Unit-test modules always host their own suite.
func (r *UnittestRunner) Plan(target Target) (tactile.Command, Strategy) {
	return r.opts.command(target, SelfHosted, target.Path), SelfHosted
}

// Run implements Runner.
func (r *UnittestRunner) Run(ctx context.Context, target Target) Outcome {
	cmd, strategy := r.Plan(target)
	logging.RunnerDebug("unittest %s", target.Path)
	return execute(ctx, r.executor, target, strategy, cmd)
}

// NewRunners returns the standard runner for each Kind.
func NewRunners(executor tactile.Executor, opts Options) map[Kind]Runner {
	return map[Kind]Runner{
		KindDoctest:  NewDoctestRunner(executor, opts),
		KindUnittest: NewUnittestRunner(executor, opts),
	}
}
