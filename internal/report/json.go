package report

import (
	"encoding/json"
	"io"
	"time"

	"simatest/internal/runner"
)

// jsonOutcome is the machine-readable form of runner.Outcome.
type jsonOutcome struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Strategy   string `json:"strategy,omitempty"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

type jsonReport struct {
	RunID       string        `json:"run_id"`
	Root        string        `json:"root"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Attempted   int           `json:"attempted"`
	Failed      int           `json:"failed"`
	Summary     string        `json:"summary"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Outcomes    []jsonOutcome `json:"outcomes"`
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r runner.Report) error {
	out := jsonReport{
		RunID:       r.RunID,
		Root:        r.Root,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Attempted:   r.Totals.Attempted,
		Failed:      r.Totals.Failed,
		Summary:     Summary(r.Totals),
		Interrupted: r.Interrupted,
		Outcomes:    make([]jsonOutcome, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		out.Outcomes = append(out.Outcomes, jsonOutcome{
			Name:       o.Target.Name,
			Kind:       string(o.Target.Kind),
			Path:       o.Target.Path,
			Strategy:   string(o.Strategy),
			ExitCode:   o.ExitCode,
			DurationMs: o.Duration.Milliseconds(),
			Failed:     o.Failed(),
			Error:      o.ErrorText(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
