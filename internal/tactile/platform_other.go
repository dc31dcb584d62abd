//go:build !linux && !darwin

package tactile

import "os/exec"

// getProcessResourceUsage is unsupported outside Linux and macOS.
func getProcessResourceUsage(cmd *exec.Cmd) *ResourceUsage {
	return nil
}

// setupProcessGroup leaves the default cancel behavior (kill the process).
func setupProcessGroup(cmd *exec.Cmd) {}
