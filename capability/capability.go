// File: capability/capability.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host capability probe and backend selector. The probe inspects the OS
// once (kernel release, NUMA topology, CPU count) and merges in the
// compile-time feature switches; the selector is a pure function over the
// resulting record.

package capability

import (
	"runtime"

	"github.com/momentics/pktdrv/api"
)

// Probe fills an immutable capability record for the current host. It never
// returns a hard error; anything it cannot learn is recorded as zero/false.
func Probe() api.Capabilities {
	caps := api.Capabilities{
		RawSocket: true,
		CPUCount:  runtime.NumCPU(),
	}
	probePlatform(&caps)
	return caps
}

// selection priority, highest first
var priority = []api.BackendKind{
	api.BackendDPDK,
	api.BackendAFXDP,
	api.BackendIOUring,
	api.BackendSendmmsg,
	api.BackendRawSocket,
}

// Select returns the highest-priority backend the capability record makes
// available. Pure and deterministic: no environment, no side effects.
func Select(caps api.Capabilities) api.BackendKind {
	for _, k := range priority {
		if available(caps, k) {
			return k
		}
	}
	return api.BackendNone
}

// Fallbacks returns the available backends at or below the priority of
// from, in descending priority order; from BackendNone it returns the whole
// available chain. The facade walks this list when an initializer fails.
func Fallbacks(caps api.Capabilities, from api.BackendKind) []api.BackendKind {
	var out []api.BackendKind
	seen := from == api.BackendNone
	for _, k := range priority {
		if k == from {
			seen = true
		}
		if seen && available(caps, k) {
			out = append(out, k)
		}
	}
	return out
}

func available(caps api.Capabilities, k api.BackendKind) bool {
	switch k {
	case api.BackendDPDK:
		return caps.DPDK
	case api.BackendAFXDP:
		return caps.AFXDP
	case api.BackendIOUring:
		return caps.IOUring
	case api.BackendSendmmsg:
		return caps.Sendmmsg
	case api.BackendRawSocket:
		return caps.RawSocket
	}
	return false
}
