// Package python locates the Python interpreter used to run CAM-SIMA's
// doctests and unit-test modules.
package python

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"simatest/internal/logging"
	"simatest/internal/tactile"
)

// Auto asks Locate to search DefaultCandidates.
const Auto = "auto"

// DefaultCandidates are tried in order when the interpreter is "auto".
var DefaultCandidates = []string{"python3", "python"}

// ErrNoInterpreter is returned when no candidate resolved to an executable.
var ErrNoInterpreter = errors.New("no python interpreter found")

var versionPattern = regexp.MustCompile(`Python\s+(\d+(?:\.\d+)*\S*)`)

// Interpreter describes a resolved Python executable.
type Interpreter struct {
	Path    string `json:"path"`
	Version string `json:"version,omitempty"`
}

// Candidates expands a configured interpreter name into search candidates.
func Candidates(configured string) []string {
	configured = strings.TrimSpace(configured)
	if configured == "" || configured == Auto {
		return DefaultCandidates
	}
	return []string{configured}
}

// Locate resolves the first candidate found on PATH and probes its version
// with "--version". A candidate whose probe fails is still returned, with an
// empty version, since the test modules may still run.
func Locate(ctx context.Context, executor tactile.Executor, candidates []string) (*Interpreter, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	for _, candidate := range candidates {
		path, err := exec.LookPath(candidate)
		if err != nil {
			logging.TactileDebug("python candidate %s not usable: %v", candidate, err)
			continue
		}

		interp := &Interpreter{Path: path}
		if executor == nil {
			return interp, nil
		}

		result, err := executor.Execute(ctx, tactile.Command{
			Binary:    path,
			Arguments: []string{"--version"},
			Tags:      map[string]string{"purpose": "version-probe"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", path, err)
		}
		if result.ExitCode == 0 {
			interp.Version = ParseVersion(result.Output())
		}
		return interp, nil
	}

	return nil, fmt.Errorf("%w (tried %s)", ErrNoInterpreter, strings.Join(candidates, ", "))
}

// ParseVersion extracts "3.10.4" from "Python 3.10.4". Returns "" if absent.
func ParseVersion(output string) string {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	return m[1]
}
