// Package runner executes CAM-SIMA's Python test modules one at a time and
// tallies the results.
//
// A Target is either a doctest module or a standalone unittest module. Each
// Kind has a Runner that turns the target into a subprocess and reports an
// Outcome. A Suite runs every target in configured order, never stopping on
// failure, and derives its Totals from the outcomes rather than from shared
// counters.
package runner

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects how a target module is exercised.
type Kind string

const (
	KindDoctest  Kind = "doctest"
	KindUnittest Kind = "unittest"
)

// ParseKind validates a kind name from config.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDoctest:
		return KindDoctest, nil
	case KindUnittest:
		return KindUnittest, nil
	}
	return "", fmt.Errorf("unknown target kind %q (want doctest or unittest)", s)
}

// Target is one Python module to test. Path is relative to the project root
// unless absolute.
type Target struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
}

// Outcome is the result of running one target.
type Outcome struct {
	Target   Target        `json:"target"`
	Strategy Strategy      `json:"strategy"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Killed   bool          `json:"killed,omitempty"`
	Output   string        `json:"-"`

	// Err is set when the process could not be run at all.
	Err error `json:"-"`
}

// Failed reports whether the target counts as a failure.
func (o Outcome) Failed() bool {
	return o.ExitCode != 0 || o.Err != nil || o.Killed
}

// ErrorText returns Err's message or "".
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Totals are the aggregate counts of a run.
type Totals struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// Passed returns the number of targets that did not fail.
func (t Totals) Passed() int {
	return t.Attempted - t.Failed
}

// Tally derives Totals from outcomes. Every outcome counts as attempted.
func Tally(outcomes []Outcome) Totals {
	totals := Totals{Attempted: len(outcomes)}
	for _, o := range outcomes {
		if o.Failed() {
			totals.Failed++
		}
	}
	return totals
}

// Select returns the targets matching names (by Name or Path), keeping the
// configured order. No names selects everything.
func Select(targets []Target, names []string) ([]Target, error) {
	if len(names) == 0 {
		return targets, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = false
	}

	selected := make([]Target, 0, len(names))
	for _, t := range targets {
		hit := false
		for _, key := range []string{t.Name, t.Path} {
			if _, ok := wanted[key]; ok && key != "" {
				wanted[key] = true
				hit = true
			}
		}
		if hit {
			selected = append(selected, t)
		}
	}

	var unknown []string
	for _, n := range names {
		if !wanted[n] {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown target(s): %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}
