//go:build linux && io_uring
// +build linux,io_uring

// File: internal/backend/uring_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Async submission-queue driver over io_uring: sendmsg SQEs referencing
// caller-owned buffers, one io_uring_enter per batch, and a full
// completion-queue drain before SendBatch returns. Draining per batch keeps
// buffer lifetime simple: submitted buffers only need to stay valid for the
// duration of the call, and no completions leak across calls.

package backend

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
)

func init() {
	register(api.BackendIOUring, openURing)
}

const (
	sysIOURingSetup = 425
	sysIOURingEnter = 426

	uringOffSQRing = 0
	uringOffCQRing = 0x8000000
	uringOffSQEs   = 0x10000000

	uringEnterGetEvents = 1

	opSendmsg = 9 // IORING_OP_SENDMSG
)

// Kernel ABI structs from linux/io_uring.h (64-bit layout).

type sqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

type cqringOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

type uringParams struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        sqringOffsets
	CQOff        cqringOffsets
}

type uringSQE struct {
	Opcode      uint8
	Flags       uint8
	Ioprio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	MsgFlags    uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Pad2        [2]uint64
}

type uringCQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

type uringDriver struct {
	ringFd int
	sockFd int
	depth  uint32
	stats  api.Stats
	closed bool

	sqMmap  []byte
	cqMmap  []byte
	sqeMmap []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray []uint32
	sqes    []uringSQE

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []uringCQE

	// per-slot scratch, sized to the ring depth
	msgs  []unix.Msghdr
	iovs  []unix.Iovec
	addrs []unix.RawSockaddrInet4
}

func openURing(cfg Config) (api.Driver, error) {
	depth := cfg.QueueDepth
	if depth == 0 {
		depth = DefaultQueueDepth
	}

	var params uringParams
	fd, _, errno := unix.Syscall(sysIOURingSetup,
		uintptr(depth), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, mapErrno("io_uring_setup", errno)
	}
	d := &uringDriver{ringFd: int(fd), depth: params.SQEntries}

	var err error
	sqSize := int(params.SQOff.Array) + int(params.SQEntries)*4
	d.sqMmap, err = unix.Mmap(d.ringFd, uringOffSQRing, sqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		d.teardown()
		return nil, mapErrno("mmap sq ring", err)
	}

	cqSize := int(params.CQOff.Cqes) + int(params.CQEntries)*int(unsafe.Sizeof(uringCQE{}))
	d.cqMmap, err = unix.Mmap(d.ringFd, uringOffCQRing, cqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		d.teardown()
		return nil, mapErrno("mmap cq ring", err)
	}

	sqeSize := int(params.SQEntries) * int(unsafe.Sizeof(uringSQE{}))
	d.sqeMmap, err = unix.Mmap(d.ringFd, uringOffSQEs, sqeSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		d.teardown()
		return nil, mapErrno("mmap sqes", err)
	}

	sqBase := unsafe.Pointer(&d.sqMmap[0])
	d.sqHead = (*uint32)(unsafe.Add(sqBase, params.SQOff.Head))
	d.sqTail = (*uint32)(unsafe.Add(sqBase, params.SQOff.Tail))
	d.sqMask = *(*uint32)(unsafe.Add(sqBase, params.SQOff.RingMask))
	d.sqArray = unsafe.Slice((*uint32)(unsafe.Add(sqBase, params.SQOff.Array)), params.SQEntries)
	d.sqes = unsafe.Slice((*uringSQE)(unsafe.Pointer(&d.sqeMmap[0])), params.SQEntries)

	cqBase := unsafe.Pointer(&d.cqMmap[0])
	d.cqHead = (*uint32)(unsafe.Add(cqBase, params.CQOff.Head))
	d.cqTail = (*uint32)(unsafe.Add(cqBase, params.CQOff.Tail))
	d.cqMask = *(*uint32)(unsafe.Add(cqBase, params.CQOff.RingMask))
	d.cqes = unsafe.Slice((*uringCQE)(unsafe.Add(cqBase, params.CQOff.Cqes)), params.CQEntries)

	d.sockFd, err = unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		d.teardown()
		return nil, mapErrno("dgram socket create", err)
	}

	d.msgs = make([]unix.Msghdr, d.depth)
	d.iovs = make([]unix.Iovec, d.depth)
	d.addrs = make([]unix.RawSockaddrInet4, d.depth)
	return d, nil
}

// SendBatch reserves up to len(pkts) submission slots (bounded by the ring
// depth), populates each with a sendmsg over the caller's buffer, submits
// once, and blocks until every submitted operation has completed. The
// return value is the number of successful completions; per-packet failures
// are counted in stats.Errors and not surfaced.
func (d *uringDriver) SendBatch(pkts [][]byte, dests []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	if len(pkts) == 0 {
		return 0, nil
	}
	if len(dests) != len(pkts) && len(dests) != 1 {
		return 0, fmt.Errorf("%w: %d packets, %d destinations",
			api.ErrInvalidArgument, len(pkts), len(dests))
	}

	n := len(pkts)
	if uint32(n) > d.depth {
		n = int(d.depth)
	}

	tail := atomic.LoadUint32(d.sqTail)
	for i := 0; i < n; i++ {
		pkt := pkts[i]
		if len(pkt) == 0 {
			return 0, fmt.Errorf("%w: empty packet at %d", api.ErrInvalidArgument, i)
		}
		dest := dests[0]
		if len(dests) > 1 {
			dest = dests[i]
		}

		slot := tail & d.sqMask
		rawInet4(&d.addrs[slot], dest)
		d.iovs[slot] = unix.Iovec{Base: &pkt[0]}
		d.iovs[slot].SetLen(len(pkt))
		d.msgs[slot] = unix.Msghdr{
			Name:    (*byte)(unsafe.Pointer(&d.addrs[slot])),
			Namelen: uint32(unsafe.Sizeof(d.addrs[slot])),
			Iov:     &d.iovs[slot],
		}
		d.msgs[slot].SetIovlen(1)

		d.sqes[slot] = uringSQE{
			Opcode:   opSendmsg,
			Fd:       int32(d.sockFd),
			Addr:     uint64(uintptr(unsafe.Pointer(&d.msgs[slot]))),
			UserData: uint64(i),
		}
		d.sqArray[slot] = slot
		tail++
	}
	atomic.StoreUint32(d.sqTail, tail)

	// Submit and wait for all completions of this batch in one enter.
	submitted, _, errno := unix.Syscall6(sysIOURingEnter,
		uintptr(d.ringFd), uintptr(n), uintptr(n), uringEnterGetEvents, 0, 0)
	runtime.KeepAlive(pkts)
	if errno != 0 {
		d.stats.Errors++
		return 0, mapErrno("io_uring_enter", errno)
	}

	// Drain the completion queue; completion order is not submission
	// order, but every completion is accounted before returning.
	success := 0
	drained := 0
	head := atomic.LoadUint32(d.cqHead)
	for drained < int(submitted) {
		tail := atomic.LoadUint32(d.cqTail)
		for head != tail && drained < int(submitted) {
			cqe := d.cqes[head&d.cqMask]
			if cqe.Res >= 0 {
				success++
				d.stats.PacketsSent++
				d.stats.BytesSent += uint64(cqe.Res)
			} else {
				d.stats.Errors++
			}
			head++
			drained++
		}
		atomic.StoreUint32(d.cqHead, head)
		if drained < int(submitted) {
			// Completions still outstanding; wait for the remainder.
			if _, _, errno := unix.Syscall6(sysIOURingEnter,
				uintptr(d.ringFd), 0, uintptr(int(submitted)-drained),
				uringEnterGetEvents, 0, 0); errno != 0 {
				return success, mapErrno("io_uring_enter getevents", errno)
			}
		}
	}
	return success, nil
}

// Send submits a single datagram and waits for its completion.
func (d *uringDriver) Send(pkt []byte, dest api.Dest) error {
	n, err := d.SendBatch([][]byte{pkt}, []api.Dest{dest})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: send completion failed", api.ErrIO)
	}
	return nil
}

// RecvBatch drains queued datagrams from the send socket without blocking.
func (d *uringDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	var out [][]byte
	for _, buf := range bufs {
		got, _, err := unix.Recvfrom(d.sockFd, buf, unix.MSG_DONTWAIT)
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

func (d *uringDriver) Stats() api.Stats { return d.stats }

func (d *uringDriver) Kind() api.BackendKind { return api.BackendIOUring }

// Close unmaps the rings and closes both descriptors. Idempotent.
func (d *uringDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.stats = api.Stats{}
	d.teardown()
	return nil
}

func (d *uringDriver) teardown() {
	if d.sqeMmap != nil {
		unix.Munmap(d.sqeMmap)
		d.sqeMmap = nil
	}
	if d.cqMmap != nil {
		unix.Munmap(d.cqMmap)
		d.cqMmap = nil
	}
	if d.sqMmap != nil {
		unix.Munmap(d.sqMmap)
		d.sqMmap = nil
	}
	if d.sockFd > 0 {
		unix.Close(d.sockFd)
		d.sockFd = 0
	}
	if d.ringFd > 0 {
		unix.Close(d.ringFd)
		d.ringFd = 0
	}
}
