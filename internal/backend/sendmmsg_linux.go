//go:build linux
// +build linux

// File: internal/backend/sendmmsg_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Batched datagram driver over sendmmsg(2): one system call per batch, one
// message header per packet. Scratch arrays (mmsghdr, iovec, sockaddr) are
// preallocated and repopulated with pointers per batch; payloads are never
// copied. Two population modes: heterogeneous (one destination per packet)
// and homogeneous (one destination reused across the batch).

package backend

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
)

func init() {
	register(api.BackendSendmmsg, openSendmmsg)
}

// mmsghdr mirrors struct mmsghdr on 64-bit Linux.
type mmsghdr struct {
	Hdr unix.Msghdr
	Len uint32
	_   [4]byte
}

type sendmmsgDriver struct {
	fd     int
	stats  api.Stats
	closed bool

	// per-batch scratch, grown to the largest batch seen
	msgs  []mmsghdr
	iovs  []unix.Iovec
	addrs []unix.RawSockaddrInet4
}

func openSendmmsg(cfg Config) (api.Driver, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, mapErrno("dgram socket create", err)
	}
	return &sendmmsgDriver{fd: fd}, nil
}

func (d *sendmmsgDriver) grow(n int) {
	if cap(d.msgs) < n {
		d.msgs = make([]mmsghdr, n)
		d.iovs = make([]unix.Iovec, n)
		d.addrs = make([]unix.RawSockaddrInet4, n)
	}
	d.msgs = d.msgs[:n]
	d.iovs = d.iovs[:n]
	d.addrs = d.addrs[:n]
}

func rawInet4(dst *unix.RawSockaddrInet4, dest api.Dest) {
	dst.Family = unix.AF_INET
	dst.Port = htons(dest.Port)
	dst.Addr = dest.Addr.As4()
}

func (d *sendmmsgDriver) fill(i int, pkt []byte, sa *unix.RawSockaddrInet4) {
	d.iovs[i] = unix.Iovec{Base: &pkt[0]}
	d.iovs[i].SetLen(len(pkt))

	hdr := &d.msgs[i].Hdr
	*hdr = unix.Msghdr{
		Name:    (*byte)(unsafe.Pointer(sa)),
		Namelen: uint32(unsafe.Sizeof(*sa)),
		Iov:     &d.iovs[i],
	}
	hdr.SetIovlen(1)
	d.msgs[i].Len = 0
}

// flush issues the single sendmmsg call for n populated headers and
// accounts the accepted prefix.
func (d *sendmmsgDriver) flush(pkts [][]byte, n int) (int, error) {
	sent, _, errno := unix.Syscall6(unix.SYS_SENDMMSG,
		uintptr(d.fd),
		uintptr(unsafe.Pointer(&d.msgs[0])),
		uintptr(n),
		unix.MSG_DONTWAIT,
		0, 0,
	)
	runtime.KeepAlive(pkts)
	if errno != 0 {
		if wouldBlock(errno) {
			return 0, nil
		}
		d.stats.Errors++
		return 0, mapErrno("sendmmsg", errno)
	}
	k := int(sent)
	for i := 0; i < k; i++ {
		d.stats.PacketsSent++
		d.stats.BytesSent += uint64(len(pkts[i]))
	}
	return k, nil
}

// SendBatch transmits the batch with one destination per packet. Empty
// packets are an invalid argument: a zero-length datagram carries no load
// in a stress run and has no iovec base.
func (d *sendmmsgDriver) SendBatch(pkts [][]byte, dests []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	if len(pkts) == 0 {
		return 0, nil
	}
	if len(dests) == 1 {
		return d.SendBatchTo(pkts, dests[0])
	}
	if len(dests) != len(pkts) {
		return 0, fmt.Errorf("%w: %d packets, %d destinations",
			api.ErrInvalidArgument, len(pkts), len(dests))
	}
	d.grow(len(pkts))
	for i, pkt := range pkts {
		if len(pkt) == 0 {
			return 0, fmt.Errorf("%w: empty packet at %d", api.ErrInvalidArgument, i)
		}
		rawInet4(&d.addrs[i], dests[i])
		d.fill(i, pkt, &d.addrs[i])
	}
	return d.flush(pkts, len(pkts))
}

// SendBatchTo is the homogeneous-destination mode: a single sockaddr is
// shared by every message header.
func (d *sendmmsgDriver) SendBatchTo(pkts [][]byte, dest api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	if len(pkts) == 0 {
		return 0, nil
	}
	d.grow(len(pkts))
	rawInet4(&d.addrs[0], dest)
	for i, pkt := range pkts {
		if len(pkt) == 0 {
			return 0, fmt.Errorf("%w: empty packet at %d", api.ErrInvalidArgument, i)
		}
		d.fill(i, pkt, &d.addrs[0])
	}
	return d.flush(pkts, len(pkts))
}

// RecvBatch drains queued datagrams one per caller buffer.
func (d *sendmmsgDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
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
			return out, mapErrno("dgram recvfrom", err)
		}
		d.stats.PacketsReceived++
		d.stats.BytesReceived += uint64(got)
		out = append(out, buf[:got])
	}
	return out, nil
}

func (d *sendmmsgDriver) Stats() api.Stats { return d.stats }

func (d *sendmmsgDriver) Kind() api.BackendKind { return api.BackendSendmmsg }

// Close releases the socket and resets the counter block. Idempotent.
func (d *sendmmsgDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.stats = api.Stats{}
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("dgram socket close: %w", err)
	}
	return nil
}
