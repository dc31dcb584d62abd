//go:build darwin

package tactile

import "syscall"

// getMaxRSSBytes returns ru_maxrss, which macOS already reports in bytes.
func getMaxRSSBytes(rusage *syscall.Rusage) int64 {
	return rusage.Maxrss
}
