// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// live in separate files guarded by build tags. Pinning is best-effort: the
// scheduler above the driver core decides which thread goes where; this
// package only executes the placement.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and binds that thread to
// the given logical CPU. On platforms without affinity support it returns a
// non-fatal error after locking the thread.
func Pin(cpuID int) error {
	runtime.LockOSThread()
	return pinPlatform(cpuID)
}

// Unpin releases the OS-thread lock. Any kernel-side affinity mask is left
// in place; the thread returns to the scheduler's default placement when it
// exits.
func Unpin() {
	runtime.UnlockOSThread()
}
