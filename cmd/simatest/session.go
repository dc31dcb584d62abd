package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"simatest/internal/config"
	"simatest/internal/logging"
	"simatest/internal/runner"
	"simatest/internal/tactile"
	"simatest/internal/tactile/python"
	"simatest/internal/workspace"
)

// session is the resolved project root plus its effective configuration.
type session struct {
	root    string
	cfgPath string
	cfg     *config.Config
	targets []runner.Target
}

// openSession resolves the project root, loads .env and the config, applies
// flag overrides and validates. Root failures exit 1, config failures exit 2.
func openSession(cmd *cobra.Command) (*session, error) {
	log := logging.Get(logging.CategoryBoot)

	marker, maxAscend := workspace.DefaultMarker, workspace.DefaultMaxAscend
	if configPath != "" {
		pre, err := config.Load(configPath)
		if err != nil {
			return nil, &ExitError{Code: exitUsage, Message: err.Error()}
		}
		marker, maxAscend = pre.Project.Marker, pre.Project.MaxAscend
	}

	root, err := workspace.ResolveDir(workspaceDir, marker, maxAscend)
	if err != nil {
		if workspace.IsRootNotFound(err) {
			return nil, &ExitError{Code: exitFailure, Message: "ERROR: " + err.Error()}
		}
		return nil, err
	}
	log.Debugw("project root resolved", "root", root, "marker", marker)

	if err := config.LoadDotEnv(root); err != nil {
		log.Warnf("ignoring .env: %v", err)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(root)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &ExitError{Code: exitUsage, Message: err.Error()}
	}

	if configPath == "" && (cfg.Project.Marker != marker || cfg.Project.MaxAscend != maxAscend) {
		log.Warnf("project.marker and project.max_ascend in %s only apply when it is passed with --config", path)
	}

	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.Execution.StrictExit = strict
	}
	if flags.Changed("timeout") {
		cfg.Execution.Timeout = timeout.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: exitUsage, Message: fmt.Sprintf("invalid config %s:\n%v", path, err)}
	}
	if err := logging.Initialize(cfg.Logging.Options(verbose)); err != nil {
		return nil, &ExitError{Code: exitUsage, Message: fmt.Sprintf("failed to initialize logging: %v", err)}
	}

	targets, err := cfg.RunnerTargets()
	if err != nil {
		return nil, &ExitError{Code: exitUsage, Message: err.Error()}
	}

	return &session{root: root, cfgPath: path, cfg: cfg, targets: targets}, nil
}

// interpreter returns the Python to launch. "auto" searches PATH; anything
// else is used as given and a missing binary shows up as exit 127 per target.
func (s *session) interpreter(ctx context.Context) string {
	if s.cfg.Python.Interpreter != python.Auto {
		return s.cfg.Python.Interpreter
	}
	candidates := s.cfg.InterpreterCandidates()
	interp, err := python.Locate(ctx, nil, candidates)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warnf("%v; falling back to %s", err, candidates[0])
		return candidates[0]
	}
	return interp.Path
}

// executor builds the subprocess executor with audit logging attached.
func (s *session) executor() tactile.AuditedExecutor {
	ec := tactile.DefaultExecutorConfig()
	ec.DefaultWorkingDir = s.root
	ec.DefaultTimeout = s.cfg.GetTimeout()
	ec.MaxOutputBytes = int64(s.cfg.Execution.MaxOutputBytes)
	ec.Environment = s.cfg.Execution.Env

	e := tactile.NewDirectExecutorWithConfig(ec)
	e.SetAuditCallback(tactile.LogAuditEvent)
	return e
}

// runnerOptions returns the module runner options for this session.
func (s *session) runnerOptions(ctx context.Context, runID string, cmd *cobra.Command) runner.Options {
	opts := runner.Options{
		Interpreter:    s.interpreter(ctx),
		DoctestModule:  s.cfg.Python.DoctestModule,
		SelfHostMarker: s.cfg.Python.SelfHostMarker,
		Root:           s.root,
		Timeout:        s.cfg.GetTimeout(),
		Stdout:         cmd.OutOrStdout(),
		Stderr:         cmd.ErrOrStderr(),
		RunID:          runID,
	}
	// Keep stdout a single JSON document.
	if jsonOutput {
		opts.Stdout = cmd.ErrOrStderr()
	}
	return opts
}
