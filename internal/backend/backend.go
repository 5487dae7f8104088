// File: internal/backend/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Backend driver registry. Each compiled-in driver registers its opener at
// init time, keyed by backend kind; the facade resolves kinds through this
// table so that planes excluded at build time are simply absent, the same
// condition as a kernel too old to run them.

package backend

import (
	"fmt"

	"github.com/momentics/pktdrv/api"
)

// Config carries every per-backend option. Drivers read the fields they
// understand and ignore the rest.
type Config struct {
	// Protocol is the L4 protocol number opened on the raw L3 path.
	Protocol int

	// InterfaceName is the NIC for the AF_XDP plane.
	InterfaceName string

	// QueueID selects the NIC queue for the AF_XDP plane.
	QueueID uint32

	// XSKMapPin optionally names a pinned xsks_map; when set, the AF_XDP
	// driver registers its socket there for its queue. The XDP program
	// itself is supplied out of band.
	XSKMapPin string

	// QueueDepth is the io_uring submission ring depth; 0 means 256.
	QueueDepth uint32

	// PortID selects the poll-mode port (the interface index).
	PortID int

	// Promiscuous enables promiscuous mode on the poll-mode port.
	Promiscuous bool

	// DestMAC is the L2 destination the poll-mode plane frames packets
	// with; the zero value means broadcast.
	DestMAC [6]byte
}

// DefaultQueueDepth is the io_uring submission ring depth when the config
// leaves it zero.
const DefaultQueueDepth = 256

// OpenFunc constructs one backend driver.
type OpenFunc func(cfg Config) (api.Driver, error)

var registry = map[api.BackendKind]OpenFunc{}

// register wires a driver constructor; called from init in per-backend
// files so that build tags decide the table contents.
func register(kind api.BackendKind, open OpenFunc) {
	registry[kind] = open
}

// Compiled reports whether the given backend was compiled into this binary.
func Compiled(kind api.BackendKind) bool {
	_, ok := registry[kind]
	return ok
}

// Open constructs the driver for kind.
func Open(kind api.BackendKind, cfg Config) (api.Driver, error) {
	open, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: backend %s not compiled in", api.ErrUnsupported, kind)
	}
	return open(cfg)
}
