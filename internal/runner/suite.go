package runner

import (
	"context"
	"fmt"
	"time"

	"simatest/internal/logging"
)

// Reporter receives suite events in order. Implementations write the
// console report.
type Reporter interface {
	Progress(target Target)
	Failure(outcome Outcome)
	Summary(totals Totals)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Progress(Target) {}
func (NopReporter) Failure(Outcome) {}
func (NopReporter) Summary(Totals) {}

// Report is the result of one suite run.
type Report struct {
	RunID      string    `json:"run_id"`
	Root       string    `json:"root"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	Totals     Totals    `json:"totals"`

	// Interrupted is set when the context ended before every target ran.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Suite runs targets sequentially.
type Suite struct {
	RunID    string
	Root     string
	Targets  []Target
	Runners  map[Kind]Runner
	Reporter Reporter
}

// Run executes every target in order and returns the report. A failing
// target never stops the run; only cancellation of ctx does.
func (s *Suite) Run(ctx context.Context) Report {
	reporter := s.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	report := Report{
		RunID:     s.RunID,
		Root:      s.Root,
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, 0, len(s.Targets)),
	}
	logging.Runner("running %d targets in %s", len(s.Targets), s.Root)

	for _, target := range s.Targets {
		if ctx.Err() != nil {
			report.Interrupted = true
			logging.RunnerWarn("run interrupted before %s: %v", target.Path, ctx.Err())
			break
		}

		reporter.Progress(target)

		var outcome Outcome
		if r, ok := s.Runners[target.Kind]; ok {
			outcome = r.Run(ctx, target)
		} else {
			outcome = Outcome{
				Target:   target,
				ExitCode: -1,
				Err:      fmt.Errorf("no runner for kind %q", target.Kind),
			}
		}

		if outcome.Failed() {
			reporter.Failure(outcome)
			logging.RunnerDebug("%s failed: exit=%d err=%s", target.Path, outcome.ExitCode, outcome.ErrorText())
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	if ctx.Err() != nil {
		report.Interrupted = true
	}

	report.FinishedAt = time.Now()
	report.Totals = Tally(report.Outcomes)
	reporter.Summary(report.Totals)
	logging.Runner("run finished: %d attempted, %d failed", report.Totals.Attempted, report.Totals.Failed)
	return report
}
