// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Core value types shared by the capability probe, the backend selector and
// every backend driver: backend kinds, the immutable capability record and
// the per-packet destination.

package api

import (
	"fmt"
	"net/netip"
)

// BackendKind identifies one concrete transmit/receive path.
type BackendKind int

// Backend kinds in ascending selection priority.
const (
	BackendNone BackendKind = iota
	BackendRawSocket
	BackendSendmmsg
	BackendIOUring
	BackendAFXDP
	BackendDPDK
)

// String returns the canonical backend name.
func (k BackendKind) String() string {
	switch k {
	case BackendDPDK:
		return "dpdk"
	case BackendAFXDP:
		return "af_xdp"
	case BackendIOUring:
		return "io_uring"
	case BackendSendmmsg:
		return "sendmmsg"
	case BackendRawSocket:
		return "raw_socket"
	default:
		return "none"
	}
}

// ParseBackendKind maps a canonical backend name to its kind. Used by the
// force_backend config option; the empty string maps to BackendNone.
func ParseBackendKind(s string) (BackendKind, error) {
	switch s {
	case "":
		return BackendNone, nil
	case "dpdk":
		return BackendDPDK, nil
	case "af_xdp":
		return BackendAFXDP, nil
	case "io_uring":
		return BackendIOUring, nil
	case "sendmmsg":
		return BackendSendmmsg, nil
	case "raw_socket":
		return BackendRawSocket, nil
	}
	return BackendNone, fmt.Errorf("%w: unknown backend %q", ErrInvalidArgument, s)
}

// Capabilities is an immutable snapshot of what the current host and build
// support. Filled once by the capability probe; the advanced flags stay false
// on non-Linux hosts.
type Capabilities struct {
	RawSocket   bool
	Sendmmsg    bool
	IOUring     bool
	AFXDP       bool
	DPDK        bool
	KernelMajor int
	KernelMinor int
	CPUCount    int
	NUMANodes   int
}

// String renders a one-line capability summary for logs and CLIs.
func (c Capabilities) String() string {
	return fmt.Sprintf(
		"kernel=%d.%d cpus=%d numa=%d raw=%t sendmmsg=%t io_uring=%t af_xdp=%t dpdk=%t",
		c.KernelMajor, c.KernelMinor, c.CPUCount, c.NUMANodes,
		c.RawSocket, c.Sendmmsg, c.IOUring, c.AFXDP, c.DPDK,
	)
}

// Dest is an IPv4 destination for L4-datagram backends. The address is kept
// in its wire (network byte order) form.
type Dest struct {
	Addr netip.Addr
	Port uint16
}

// DestOf builds a Dest from a 4-byte address and port.
func DestOf(ip [4]byte, port uint16) Dest {
	return Dest{Addr: netip.AddrFrom4(ip), Port: port}
}
