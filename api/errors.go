// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error taxonomy for the pktdrv packet driver core.
// The facade maps backend-specific failures onto these sentinels; callers
// test with errors.Is.

package api

import "fmt"

// Errors shared across backends and the facade.
var (
	// ErrUnsupported indicates a feature absent at compile time or a kernel
	// too old to provide it.
	ErrUnsupported = fmt.Errorf("backend unsupported")

	// ErrPrivilege indicates a raw socket, XDP bind or device open was
	// denied by the OS.
	ErrPrivilege = fmt.Errorf("insufficient privilege")

	// ErrResourceExhausted indicates the memory area, mbuf pool or a ring
	// could not be allocated. Ring-slot shortage during SendBatch is soft
	// backpressure, reported as a short count and never as this error.
	ErrResourceExhausted = fmt.Errorf("resource exhausted")

	// ErrInvalidArgument covers malformed headers, lengths above 65535 and
	// buffers too short to extract a destination from.
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// ErrNoSuchInterface is returned when an interface name resolves to no
	// device.
	ErrNoSuchInterface = fmt.Errorf("no such interface")

	// ErrIO wraps an underlying system-call failure; the platform errno is
	// preserved in the wrapped error for diagnostics.
	ErrIO = fmt.Errorf("io error")

	// ErrBackendInit signals an initializer failure; the facade reacts by
	// falling back to the next backend in priority order.
	ErrBackendInit = fmt.Errorf("backend init failed")

	// ErrClosed is returned from operations on a closed handle.
	ErrClosed = fmt.Errorf("driver is closed")
)
