//go:build unix
// +build unix

// File: internal/backend/rawsock_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable raw-socket driver: an AF_INET/SOCK_RAW socket with IP_HDRINCL,
// one sendto per packet. Submitted buffers are complete IPv4 datagrams; the
// destination is taken from the header's destination field, so no separate
// Dest list is needed. The floor of the backend ladder: always available,
// needs CAP_NET_RAW.

package backend

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/packet"
)

func init() {
	register(api.BackendRawSocket, openRawSocket)
}

type rawSocketDriver struct {
	fd     int
	stats  api.Stats
	closed bool
}

func openRawSocket(cfg Config) (api.Driver, error) {
	proto := cfg.Protocol
	if proto == 0 {
		proto = unix.IPPROTO_RAW
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, mapErrno("raw socket create", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, mapErrno("set nonblocking", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, mapErrno("setsockopt IP_HDRINCL", err)
	}
	return &rawSocketDriver{fd: fd}, nil
}

// SendBatch issues one datagram send per packet; the accepted count is the
// prefix that reached the kernel. Destinations are bytes 16-19 of each
// buffer. A buffer too short for an IPv4 header fails the batch at its
// position with an invalid-argument error, distinguished from send
// failures.
func (d *rawSocketDriver) SendBatch(pkts [][]byte, _ []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	for i, pkt := range pkts {
		dst, err := packet.Dst(pkt)
		if err != nil {
			return i, err
		}
		sa := unix.SockaddrInet4{Addr: dst.As4()}
		if err := unix.Sendto(d.fd, pkt, 0, &sa); err != nil {
			if wouldBlock(err) {
				return i, nil
			}
			d.stats.Errors++
			return i, mapErrno("raw sendto", err)
		}
		d.stats.PacketsSent++
		d.stats.BytesSent += uint64(len(pkt))
	}
	return len(pkts), nil
}

// RecvBatch drains whatever full datagrams are queued on the socket,
// one per caller buffer, without blocking.
func (d *rawSocketDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	var out [][]byte
	for _, buf := range bufs {
		got, _, err := unix.Recvfrom(d.fd, buf, unix.MSG_DONTWAIT)
		if err != nil {
			if wouldBlock(err) {
				break
			}
			return out, mapErrno("raw recvfrom", err)
		}
		d.stats.PacketsReceived++
		d.stats.BytesReceived += uint64(got)
		out = append(out, buf[:got])
	}
	return out, nil
}

func (d *rawSocketDriver) Stats() api.Stats { return d.stats }

func (d *rawSocketDriver) Kind() api.BackendKind { return api.BackendRawSocket }

// Close releases the socket and resets the counter block. Idempotent.
func (d *rawSocketDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.stats = api.Stats{}
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("raw socket close: %w", err)
	}
	return nil
}
