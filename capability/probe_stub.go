//go:build !linux
// +build !linux

// File: capability/probe_stub.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux probe: only the portable raw-socket path is available. The
// advanced flags stay false regardless of build tags.

package capability

import "github.com/momentics/pktdrv/api"

func probePlatform(caps *api.Capabilities) {
	// Raw sockets and the CPU count were filled by Probe; everything that
	// depends on the Linux kernel stays unavailable and the NUMA node count
	// stays unknown (zero).
	_ = caps
}
