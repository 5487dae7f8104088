//go:build linux && dpdk
// +build linux,dpdk

// File: internal/backend/pollmode_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Userspace poll-mode driver. Initialization is two-phase: a process-wide
// environment init builds the shared mbuf pool exactly once, then each
// port init opens an AF_PACKET datagram socket bound to the port (its
// interface index), 1 RX + 1 TX queue, and enables promiscuous mode.
// Bursts copy payloads into pool mbufs before handing them to the device;
// received frames are copied out to the caller and their mbufs returned to
// the pool immediately, so no pool memory escapes the driver. Counters come
// from the device, not from this layer.

package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/pool"
)

func init() {
	register(api.BackendDPDK, openPollMode)
}

const (
	// environment mbuf pool population and buffer size
	pollModePoolSize = 8192
	pollModeBufSize  = 2048
	// per-port queue depth
	pollModeQueueDepth = 1024
)

var (
	envOnce sync.Once
	envPool *pool.MbufPool
	envErr  error
)

// initEnv is the once-per-process environment initialization.
func initEnv() (*pool.MbufPool, error) {
	envOnce.Do(func() {
		envPool, envErr = pool.NewMbufPool(pollModePoolSize, pollModeBufSize)
	})
	if envErr != nil {
		return nil, fmt.Errorf("%w: mbuf pool: %v", api.ErrResourceExhausted, envErr)
	}
	return envPool, nil
}

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

type pollModeDriver struct {
	fd      int
	port    int
	destMAC [6]byte
	mbufs   *pool.MbufPool
	closed  bool

	// baseline device counters at open; Stats reports the delta
	base api.Stats
}

func openPollMode(cfg Config) (api.Driver, error) {
	mbufs, err := initEnv()
	if err != nil {
		return nil, err
	}

	link, err := netlink.LinkByIndex(cfg.PortID)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: port %d", api.ErrNoSuchInterface, cfg.PortID)
		}
		return nil, fmt.Errorf("%w: port %d info: %v", api.ErrIO, cfg.PortID, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK,
		int(htons(unix.ETH_P_IP)))
	if err != nil {
		return nil, mapErrno("packet socket create", err)
	}
	sa := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  cfg.PortID,
	}
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, mapErrno("packet socket bind", err)
	}

	// 1 RX + 1 TX queue of pollModeQueueDepth frames each.
	queueBytes := pollModeQueueDepth * pollModeBufSize
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, queueBytes)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, queueBytes)

	if cfg.Promiscuous {
		mreq := unix.PacketMreq{
			Ifindex: int32(cfg.PortID),
			Type:    unix.PACKET_MR_PROMISC,
		}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET,
			unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			unix.Close(fd)
			return nil, mapErrno("promiscuous enable", err)
		}
	}

	dest := cfg.DestMAC
	if dest == ([6]byte{}) {
		dest = broadcastMAC
	}

	d := &pollModeDriver{
		fd:      fd,
		port:    cfg.PortID,
		destMAC: dest,
		mbufs:   mbufs,
	}
	d.base = deviceStats(link)
	return d, nil
}

// deviceStats maps the port's kernel counters onto the stats block.
func deviceStats(link netlink.Link) api.Stats {
	s := link.Attrs().Statistics
	if s == nil {
		return api.Stats{}
	}
	return api.Stats{
		PacketsSent:     s.TxPackets,
		PacketsReceived: s.RxPackets,
		BytesSent:       s.TxBytes,
		BytesReceived:   s.RxBytes,
		Errors:          s.TxErrors + s.RxErrors,
	}
}

// SendBatch allocates one mbuf per packet from the shared pool, appends the
// payloads and bursts them at the port. The unsent tail's mbufs are freed;
// sent mbufs are freed too because the payload was copied on append.
func (d *pollModeDriver) SendBatch(pkts [][]byte, _ []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	burst := d.mbufs.AllocBatch(len(pkts))
	defer func() {
		for _, m := range burst {
			d.mbufs.Free(m)
		}
	}()

	sa := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_IP),
		Ifindex:  d.port,
		Halen:    6,
	}
	copy(sa.Addr[:], d.destMAC[:])

	sent := 0
	for i, m := range burst {
		if err := m.Append(pkts[i]); err != nil {
			return sent, err
		}
		if err := unix.Sendto(d.fd, m.Bytes(), unix.MSG_DONTWAIT, &sa); err != nil {
			if wouldBlock(err) {
				return sent, nil
			}
			return sent, mapErrno("tx burst", err)
		}
		sent++
	}
	return sent, nil
}

// RecvBatch bursts up to len(bufs) frames off the port. Frames are copied
// into the caller's buffers and the mbufs returned to the pool before the
// call returns, so mbuf lifetime never leaves the core.
func (d *pollModeDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	var out [][]byte
	for i := 0; i < len(bufs); i++ {
		m := d.mbufs.Alloc()
		if m == nil {
			break
		}
		got, _, err := unix.Recvfrom(d.fd, m.Bytes()[:m.Cap()], unix.MSG_DONTWAIT)
		if err != nil {
			d.mbufs.Free(m)
			if wouldBlock(err) {
				break
			}
			return out, mapErrno("rx burst", err)
		}
		n := copy(bufs[i], m.Bytes()[:m.Cap()][:got])
		d.mbufs.Free(m)
		out = append(out, bufs[i][:n])
	}
	return out, nil
}

// Stats pulls the port's device counters and reports the delta since open,
// keeping the block monotone for this driver's lifetime.
func (d *pollModeDriver) Stats() api.Stats {
	link, err := netlink.LinkByIndex(d.port)
	if err != nil {
		return api.Stats{}
	}
	now := deviceStats(link)
	return api.Stats{
		PacketsSent:     now.PacketsSent - d.base.PacketsSent,
		PacketsReceived: now.PacketsReceived - d.base.PacketsReceived,
		BytesSent:       now.BytesSent - d.base.BytesSent,
		BytesReceived:   now.BytesReceived - d.base.BytesReceived,
		Errors:          now.Errors - d.base.Errors,
	}
}

func (d *pollModeDriver) Kind() api.BackendKind { return api.BackendDPDK }

// Close releases the port socket. The environment (the shared mbuf pool)
// stays up for other ports; its teardown is process exit and is idempotent
// by construction.
func (d *pollModeDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("packet socket close: %w", err)
	}
	return nil
}
