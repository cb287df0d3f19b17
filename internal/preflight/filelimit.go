package preflight

import (
	"fmt"
	"runtime"
	"syscall"
)

// reservedFileDescriptors covers stdio, the debug log and the directory
// handles held open by the walk.
const reservedFileDescriptors = 64

// CheckFileDescriptors checks that the open file limit leaves room for one
// open file per worker. workers <= 0 means one per CPU.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{
		Name: "file_descriptors",
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	need := uint64(workers) + reservedFileDescriptors

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	if rLimit.Cur < need {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d (need %d for %d workers)", rLimit.Cur, need, workers)
		result.Details = "Lower --workers or run 'ulimit -n 10240'"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d (need %d for %d workers)", rLimit.Cur, need, workers)
	return result
}
