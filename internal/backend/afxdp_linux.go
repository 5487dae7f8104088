//go:build linux && afxdp
// +build linux,afxdp

// File: internal/backend/afxdp_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Kernel-bypass driver over an AF_XDP socket. A page-aligned UMEM area of
// NumFrames fixed-size frames is shared with the kernel; four
// single-producer/single-consumer rings carry frame offsets: fill
// (user->kernel, empty RX frames), completion (kernel->user, transmitted
// frames), rx (kernel->user, received data) and tx (user->kernel, frames to
// transmit). Frame ownership is tracked by the umem arena so that an
// address is never posted to two rings at once: the fill ring owns the RX
// half of the area from initialization, TX draws from the free FIFO and
// frames return to it through the completion ring.
//
// The XDP program that steers packets into the socket is supplied out of
// band; when cfg.XSKMapPin names a pinned xsks_map, the socket registers
// itself there for its queue.

package backend

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/cilium/ebpf"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/internal/umem"
)

func init() {
	register(api.BackendAFXDP, openAFXDP)
}

const (
	// xdpNumFrames is the UMEM frame population.
	xdpNumFrames = 4096
	// xdpFrameSize is the default XSK frame size.
	xdpFrameSize = 4096
	// xdpFillFrames is the share of frames owned by the fill ring from
	// initialization; the remainder is the TX free pool.
	xdpFillFrames = xdpNumFrames / 2
)

/*---- Kernel ABI structs from linux/if_xdp.h ----*/

type sockaddrXDP struct {
	Family       uint16
	Flags        uint16
	Ifindex      uint32
	QueueID      uint32
	SharedUmemFD uint32
}

type xdpRingOffset struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

type xdpMmapOffsets struct {
	Rx xdpRingOffset
	Tx xdpRingOffset
	Fr xdpRingOffset
	Cr xdpRingOffset
}

type xdpUmemReg struct {
	Addr      uint64
	Len       uint64
	ChunkSize uint32
	Headroom  uint32
}

type xdpDesc struct {
	Addr uint64
	Len  uint32
	Opts uint32
}

/*---- Ring wrappers over the shared mmap regions ----*/

// descRing is an rx or tx ring carrying xdp_desc entries.
type descRing struct {
	cachedProd uint32
	cachedCons uint32
	mask       uint32
	size       uint32
	prod       *uint32
	cons       *uint32
	flags      *uint32
	descs      []xdpDesc
	region     []byte
}

// addrRing is a fill or completion ring carrying raw frame offsets.
type addrRing struct {
	cachedProd uint32
	cachedCons uint32
	mask       uint32
	size       uint32
	prod       *uint32
	cons       *uint32
	addrs      []uint64
	region     []byte
}

func newDescRing(region []byte, off xdpRingOffset, size uint32, isTx bool) *descRing {
	base := unsafe.Pointer(&region[0])
	r := &descRing{
		mask:   size - 1,
		size:   size,
		prod:   (*uint32)(unsafe.Add(base, off.Producer)),
		cons:   (*uint32)(unsafe.Add(base, off.Consumer)),
		flags:  (*uint32)(unsafe.Add(base, off.Flags)),
		descs:  unsafe.Slice((*xdpDesc)(unsafe.Add(base, off.Desc)), size),
		region: region,
	}
	if isTx {
		r.cachedCons = size
	}
	return r
}

func newAddrRing(region []byte, off xdpRingOffset, size uint32) *addrRing {
	base := unsafe.Pointer(&region[0])
	return &addrRing{
		mask:   size - 1,
		size:   size,
		prod:   (*uint32)(unsafe.Add(base, off.Producer)),
		cons:   (*uint32)(unsafe.Add(base, off.Consumer)),
		addrs:  unsafe.Slice((*uint64)(unsafe.Add(base, off.Desc)), size),
		region: region,
	}
}

// reserve claims up to n producer slots, returning the start index and the
// granted count.
func (r *descRing) reserve(n uint32) (idx, granted uint32) {
	free := r.cachedCons - r.cachedProd
	if free < n {
		r.cachedCons = atomic.LoadUint32(r.cons) + r.size
		free = r.cachedCons - r.cachedProd
	}
	if n > free {
		n = free
	}
	idx = r.cachedProd
	r.cachedProd += n
	return idx, n
}

// submit publishes every reserved descriptor to the kernel.
func (r *descRing) submit() {
	atomic.StoreUint32(r.prod, r.cachedProd)
}

// needsWakeup reports whether the kernel asked for a TX doorbell.
func (r *descRing) needsWakeup() bool {
	return atomic.LoadUint32(r.flags)&unix.XDP_RING_NEED_WAKEUP != 0
}

// available returns the number of consumable descriptors.
func (r *descRing) available() uint32 {
	if n := r.cachedProd - r.cachedCons; n > 0 {
		return n
	}
	r.cachedProd = atomic.LoadUint32(r.prod)
	return r.cachedProd - r.cachedCons
}

// release advances the consumer index past n consumed descriptors.
func (r *descRing) release(n uint32) {
	r.cachedCons += n
	atomic.StoreUint32(r.cons, r.cachedCons)
}

// push produces one address; false when the ring is full.
func (r *addrRing) push(addr uint64) bool {
	free := r.cachedCons - r.cachedProd
	if free == 0 {
		r.cachedCons = atomic.LoadUint32(r.cons) + r.size
		if r.cachedCons-r.cachedProd == 0 {
			return false
		}
	}
	r.addrs[r.cachedProd&r.mask] = addr
	r.cachedProd++
	atomic.StoreUint32(r.prod, r.cachedProd)
	return true
}

// pop consumes up to len(dst) addresses.
func (r *addrRing) pop(dst []uint64) uint32 {
	avail := r.cachedProd - r.cachedCons
	if avail == 0 {
		r.cachedProd = atomic.LoadUint32(r.prod)
		avail = r.cachedProd - r.cachedCons
	}
	n := uint32(len(dst))
	if avail < n {
		n = avail
	}
	for i := uint32(0); i < n; i++ {
		dst[i] = r.addrs[r.cachedCons&r.mask]
		r.cachedCons++
	}
	if n > 0 {
		atomic.StoreUint32(r.cons, r.cachedCons)
	}
	return n
}

/*---- Driver ----*/

type afxdpDriver struct {
	fd     int
	arena  *umem.Arena
	stats  api.Stats
	closed bool

	tx   *descRing
	rx   *descRing
	fill *addrRing
	comp *addrRing

	compBuf []uint64
}

func openAFXDP(cfg Config) (api.Driver, error) {
	if cfg.InterfaceName == "" {
		return nil, fmt.Errorf("%w: af_xdp needs an interface name", api.ErrInvalidArgument)
	}
	link, err := netlink.LinkByName(cfg.InterfaceName)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrNoSuchInterface, cfg.InterfaceName)
		}
		return nil, fmt.Errorf("%w: resolving %s: %v", api.ErrIO, cfg.InterfaceName, err)
	}
	ifindex := link.Attrs().Index

	// Page-aligned memory area: NumFrames fixed-size cells addressed by
	// byte offset. mmap keeps it page-aligned by construction.
	area, err := unix.Mmap(-1, 0, xdpNumFrames*xdpFrameSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_POPULATE)
	if err != nil {
		return nil, mapErrno("mmap umem area", err)
	}
	arena, err := umem.New(area, xdpNumFrames, xdpFrameSize, xdpFillFrames)
	if err != nil {
		unix.Munmap(area)
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		unix.Munmap(area)
		return nil, mapErrno("af_xdp socket create", err)
	}

	d := &afxdpDriver{fd: fd, arena: arena, compBuf: make([]uint64, 64)}

	reg := xdpUmemReg{
		Addr:      uint64(uintptr(unsafe.Pointer(&area[0]))),
		Len:       uint64(len(area)),
		ChunkSize: xdpFrameSize,
	}
	if err := xdpSetsockopt(fd, unix.XDP_UMEM_REG, unsafe.Pointer(&reg), unsafe.Sizeof(reg)); err != nil {
		d.destroy()
		return nil, mapErrno("setsockopt XDP_UMEM_REG", err)
	}

	for _, opt := range []struct {
		name int
		size uint32
	}{
		{unix.XDP_UMEM_FILL_RING, xdpNumFrames},
		{unix.XDP_UMEM_COMPLETION_RING, xdpNumFrames},
		{unix.XDP_RX_RING, xdpNumFrames},
		{unix.XDP_TX_RING, xdpNumFrames},
	} {
		size := opt.size
		if err := xdpSetsockopt(fd, opt.name, unsafe.Pointer(&size), unsafe.Sizeof(size)); err != nil {
			d.destroy()
			return nil, mapErrno("setsockopt ring size", err)
		}
	}

	var offs xdpMmapOffsets
	if err := xdpGetsockopt(fd, unix.XDP_MMAP_OFFSETS, unsafe.Pointer(&offs), unsafe.Sizeof(offs)); err != nil {
		d.destroy()
		return nil, mapErrno("getsockopt XDP_MMAP_OFFSETS", err)
	}

	mapRing := func(off xdpRingOffset, entry uintptr, pgoff int64) ([]byte, error) {
		length := int(uintptr(off.Desc) + uintptr(xdpNumFrames)*entry)
		return unix.Mmap(fd, pgoff, length,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	}

	rxRegion, err := mapRing(offs.Rx, unsafe.Sizeof(xdpDesc{}), unix.XDP_PGOFF_RX_RING)
	if err != nil {
		d.destroy()
		return nil, mapErrno("mmap rx ring", err)
	}
	d.rx = newDescRing(rxRegion, offs.Rx, xdpNumFrames, false)

	txRegion, err := mapRing(offs.Tx, unsafe.Sizeof(xdpDesc{}), unix.XDP_PGOFF_TX_RING)
	if err != nil {
		d.destroy()
		return nil, mapErrno("mmap tx ring", err)
	}
	d.tx = newDescRing(txRegion, offs.Tx, xdpNumFrames, true)

	fillRegion, err := mapRing(offs.Fr, unsafe.Sizeof(uint64(0)), unix.XDP_UMEM_PGOFF_FILL_RING)
	if err != nil {
		d.destroy()
		return nil, mapErrno("mmap fill ring", err)
	}
	d.fill = newAddrRing(fillRegion, offs.Fr, xdpNumFrames)

	compRegion, err := mapRing(offs.Cr, unsafe.Sizeof(uint64(0)), unix.XDP_UMEM_PGOFF_COMPLETION_RING)
	if err != nil {
		d.destroy()
		return nil, mapErrno("mmap completion ring", err)
	}
	d.comp = newAddrRing(compRegion, offs.Cr, xdpNumFrames)

	// The fill ring owns the RX half of the area from the start.
	for i := uint64(0); i < xdpFillFrames; i++ {
		d.fill.push(i * xdpFrameSize)
	}

	sa := sockaddrXDP{
		Family:  unix.AF_XDP,
		Flags:   unix.XDP_USE_NEED_WAKEUP,
		Ifindex: uint32(ifindex),
		QueueID: cfg.QueueID,
	}
	if _, _, errno := unix.Syscall(unix.SYS_BIND,
		uintptr(fd), uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa)); errno != 0 {
		d.destroy()
		return nil, mapErrno("af_xdp bind", errno)
	}

	if cfg.XSKMapPin != "" {
		if err := d.registerXSK(cfg.XSKMapPin, cfg.QueueID); err != nil {
			d.destroy()
			return nil, err
		}
	}
	return d, nil
}

// registerXSK wires the socket into a pinned xsks_map so the out-of-band
// XDP program can redirect this queue's packets here.
func (d *afxdpDriver) registerXSK(pin string, queue uint32) error {
	m, err := ebpf.LoadPinnedMap(pin, nil)
	if err != nil {
		return fmt.Errorf("%w: loading pinned xsks_map %s: %v", api.ErrBackendInit, pin, err)
	}
	defer m.Close()
	if err := m.Update(queue, uint32(d.fd), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("%w: registering socket in xsks_map: %v", api.ErrBackendInit, err)
	}
	return nil
}

// SendBatch reserves TX descriptors and frames, copies each payload into
// its frame and publishes the descriptors in one submit. The accepted count
// is bounded by ring space and the free-frame pool; completions are
// reclaimed on every call so frames cycle back for later batches.
func (d *afxdpDriver) SendBatch(pkts [][]byte, _ []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	d.reclaimCompletions()

	idx, granted := d.tx.reserve(uint32(len(pkts)))
	sent := uint32(0)
	for ; sent < granted; sent++ {
		pkt := pkts[sent]
		addr, ok := d.arena.Alloc()
		if !ok {
			break
		}
		frame, err := d.arena.Frame(addr)
		if err != nil {
			d.arena.Free(addr)
			break
		}
		n := copy(frame, pkt)
		d.tx.descs[(idx+sent)&d.tx.mask] = xdpDesc{Addr: addr, Len: uint32(n)}
		d.stats.PacketsSent++
		d.stats.BytesSent += uint64(n)
	}
	// Give back descriptors we reserved but could not back with frames.
	d.tx.cachedProd -= granted - sent
	d.tx.submit()

	if sent > 0 && d.tx.needsWakeup() {
		// Zero-byte non-blocking send rings the TX doorbell.
		if err := unix.Sendto(d.fd, nil, unix.MSG_DONTWAIT, nil); err != nil &&
			!wouldBlock(err) && !errors.Is(err, unix.EBUSY) {
			d.stats.Errors++
			return int(sent), mapErrno("tx wakeup", err)
		}
	}
	return int(sent), nil
}

// reclaimCompletions moves transmitted frame addresses from the completion
// ring back into the arena's free pool.
func (d *afxdpDriver) reclaimCompletions() {
	for {
		n := d.comp.pop(d.compBuf)
		if n == 0 {
			return
		}
		for i := uint32(0); i < n; i++ {
			if err := d.arena.Free(d.compBuf[i]); err != nil {
				d.stats.Errors++
			}
		}
	}
}

// RecvBatch copies received frames out to the caller's buffers (truncating
// to each buffer) and refills the fill ring with the consumed frame
// addresses. A full fill ring is not fatal: the frame is parked in the free
// pool instead, at the cost of RX capacity.
func (d *afxdpDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	avail := d.rx.available()
	if avail > uint32(len(bufs)) {
		avail = uint32(len(bufs))
	}
	var out [][]byte
	for i := uint32(0); i < avail; i++ {
		desc := d.rx.descs[d.rx.cachedCons&d.rx.mask]
		frame, err := d.arena.Frame(desc.Addr)
		if err != nil {
			d.stats.Errors++
			d.rx.cachedCons++
			continue
		}
		n := copy(bufs[i], frame[:desc.Len])
		out = append(out, bufs[i][:n])
		d.stats.PacketsReceived++
		d.stats.BytesReceived += uint64(n)
		d.rx.cachedCons++

		if !d.fill.push(desc.Addr) {
			d.arena.Recycle(desc.Addr)
		}
	}
	if avail > 0 {
		atomic.StoreUint32(d.rx.cons, d.rx.cachedCons)
	}
	return out, nil
}

func (d *afxdpDriver) Stats() api.Stats { return d.stats }

func (d *afxdpDriver) Kind() api.BackendKind { return api.BackendAFXDP }

// Close tears down socket, rings and memory area, in that order. Idempotent.
func (d *afxdpDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.stats = api.Stats{}
	return d.destroy()
}

func (d *afxdpDriver) destroy() error {
	var errs []error
	if d.fd > 0 {
		if err := unix.Close(d.fd); err != nil {
			errs = append(errs, fmt.Errorf("closing socket: %w", err))
		}
		d.fd = 0
	}
	for _, region := range [][]byte{
		ringRegion(d.rx), ringRegion(d.tx), addrRegion(d.fill), addrRegion(d.comp),
	} {
		if region != nil {
			if err := unix.Munmap(region); err != nil {
				errs = append(errs, err)
			}
		}
	}
	d.rx, d.tx, d.fill, d.comp = nil, nil, nil, nil
	if d.arena != nil {
		if err := unix.Munmap(d.arena.Bytes()); err != nil {
			errs = append(errs, err)
		}
		d.arena = nil
	}
	return errors.Join(errs...)
}

func ringRegion(r *descRing) []byte {
	if r == nil {
		return nil
	}
	return r.region
}

func addrRegion(r *addrRing) []byte {
	if r == nil {
		return nil
	}
	return r.region
}

func xdpSetsockopt(fd, name int, val unsafe.Pointer, vallen uintptr) error {
	if _, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT,
		uintptr(fd), unix.SOL_XDP, uintptr(name),
		uintptr(val), vallen, 0); errno != 0 {
		return errno
	}
	return nil
}

func xdpGetsockopt(fd, name int, val unsafe.Pointer, vallen uintptr) error {
	l := uint32(vallen)
	if _, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT,
		uintptr(fd), unix.SOL_XDP, uintptr(name),
		uintptr(val), uintptr(unsafe.Pointer(&l)), 0); errno != 0 {
		return errno
	}
	return nil
}
