// SPDX-FileCopyrightText: ClangBuiltLinux authors
//
// SPDX-License-Identifier: MIT

package sys

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// UsableCPUs returns the number of CPUs the current process may be
// scheduled on. This respects cpusets and taskset restrictions, unlike
// [runtime.NumCPU] alone.
func UsableCPUs() int {
	var set unix.CPUSet

	err := unix.SchedGetaffinity(0, &set)
	if err != nil {
		return runtime.NumCPU()
	}

	return set.Count()
}
