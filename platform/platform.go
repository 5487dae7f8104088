// File: platform/platform.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Small host shims shared by the driver core and the traffic generator
// above it: a monotonic microsecond clock and the logical CPU count.

package platform

import (
	"runtime"
	"time"
)

var epoch = time.Now()

// NowMicros returns microseconds from a monotonic clock. The zero point is
// process start; wraparound is not a concern within a process lifetime.
func NowMicros() uint64 {
	return uint64(time.Since(epoch).Microseconds())
}

// CPUCount returns the number of logical CPUs usable by the process.
func CPUCount() int {
	return runtime.NumCPU()
}
