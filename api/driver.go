// File: api/driver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Uniform backend contract. Every transmit path — raw socket, sendmmsg,
// io_uring, AF_XDP, the poll-mode data plane — implements Driver and is
// driven identically by the facade and the traffic generator above it.
//
// A Driver handle is single-threaded: the caller serializes all method
// calls. Multiple handles may run on distinct threads.

package api

// Driver is the uniform send-batch/receive-batch surface of one backend.
type Driver interface {
	// SendBatch hands off up to len(pkts) packets for transmission and
	// returns the length of the accepted prefix. dests supplies one
	// destination per packet on L4-datagram backends and is ignored by
	// L3-raw backends, which extract the destination from the IPv4 header.
	// A short return is backpressure, not an error; the caller retries the
	// unaccepted tail.
	SendBatch(pkts [][]byte, dests []Dest) (int, error)

	// RecvBatch fills the caller-owned buffers with received frames,
	// truncating each frame to the buffer it lands in, and returns the
	// delivered prefix with every slice trimmed to its frame length
	// (aliasing bufs). An empty result is a normal idle poll.
	RecvBatch(bufs [][]byte) ([][]byte, error)

	// Stats returns a snapshot of the driver counter block.
	Stats() Stats

	// Kind reports which backend this driver is.
	Kind() BackendKind

	// Close releases all resources held by the driver. It is idempotent
	// and never fails observably beyond its error return.
	Close() error
}
