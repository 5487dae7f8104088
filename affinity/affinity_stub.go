//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without thread-affinity support. The error is
// informational; callers proceed unpinned.

package affinity

import "fmt"

func pinPlatform(cpuID int) error {
	return fmt.Errorf("affinity: pinning not supported on this platform")
}
