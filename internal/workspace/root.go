// Package workspace locates the project sandbox a test run operates on.
//
// A directory is the project root when a marker predicate holds for it. The
// search starts at a given directory and climbs a bounded number of parents,
// so the tool works from the top level and from the test directory beneath it.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMarker is the subdirectory that identifies a CAM-SIMA sandbox.
const DefaultMarker = "cime_config"

// DefaultMaxAscend is how many parent directories are tried after the start.
const DefaultMaxAscend = 1

// MarkerFunc reports whether dir is the project root.
type MarkerFunc func(dir string) bool

// DirMarker returns a MarkerFunc that holds when dir/name is a directory.
func DirMarker(name string) MarkerFunc {
	return func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, name))
		return err == nil && info.IsDir()
	}
}

// RootNotFoundError is returned when no candidate directory satisfied the marker.
type RootNotFoundError struct {
	Start  string
	Marker string
	Tried  []string
}

func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("cannot find project root from %s: no %q directory in %s",
		e.Start, e.Marker, strings.Join(e.Tried, ", "))
}

// IsRootNotFound reports whether err is (or wraps) a RootNotFoundError.
func IsRootNotFound(err error) bool {
	var target *RootNotFoundError
	return errors.As(err, &target)
}

// Resolve checks start and then up to maxAscend parents with marker, returning
// the first absolute directory that matches. markerName is only used for the
// error message.
func Resolve(start string, markerName string, marker MarkerFunc, maxAscend int) (string, error) {
	if marker == nil {
		return "", fmt.Errorf("marker predicate required")
	}
	if maxAscend < 0 {
		maxAscend = 0
	}

	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		start = wd
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	dir := abs
	tried := make([]string, 0, maxAscend+1)
	for i := 0; i <= maxAscend; i++ {
		tried = append(tried, dir)
		if marker(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", &RootNotFoundError{Start: abs, Marker: markerName, Tried: tried}
}

// ResolveDir is Resolve with a DirMarker for markerDir.
func ResolveDir(start, markerDir string, maxAscend int) (string, error) {
	if markerDir == "" {
		markerDir = DefaultMarker
	}
	return Resolve(start, markerDir, DirMarker(markerDir), maxAscend)
}
