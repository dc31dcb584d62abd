//go:build linux

package tactile

import "syscall"

// getMaxRSSBytes converts ru_maxrss, which Linux reports in kilobytes.
func getMaxRSSBytes(rusage *syscall.Rusage) int64 {
	return rusage.Maxrss * 1024
}
