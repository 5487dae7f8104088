//go:build windows
// +build windows

// File: internal/backend/rawsock_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows raw-socket driver over Winsock. The socket-library startup is
// process-wide, guarded by a one-shot flag; the matching WSACleanup is left
// to process teardown since other sockets in the process share the library.

package backend

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/packet"
)

func init() {
	register(api.BackendRawSocket, openRawSocket)
}

// winsock IP_HDRINCL option id
const ipHdrIncl = 2

var wsaOnce sync.Once

func wsaStartup() error {
	var err error
	wsaOnce.Do(func() {
		var data windows.WSAData
		err = windows.WSAStartup(uint32(0x202), &data)
	})
	return err
}

type rawSocketDriver struct {
	fd     windows.Handle
	stats  api.Stats
	closed bool
}

func openRawSocket(cfg Config) (api.Driver, error) {
	if err := wsaStartup(); err != nil {
		return nil, fmt.Errorf("%w: WSAStartup: %v", api.ErrBackendInit, err)
	}
	proto := cfg.Protocol
	if proto == 0 {
		proto = windows.IPPROTO_IP
	}
	fd, err := windows.Socket(windows.AF_INET, windows.SOCK_RAW, int32(proto))
	if err != nil {
		if err == windows.WSAEACCES {
			return nil, fmt.Errorf("%w: raw socket create: %v", api.ErrPrivilege, err)
		}
		return nil, fmt.Errorf("%w: raw socket create: %v", api.ErrIO, err)
	}
	if err := windows.SetsockoptInt(fd, windows.IPPROTO_IP, ipHdrIncl, 1); err != nil {
		windows.Closesocket(fd)
		return nil, fmt.Errorf("%w: setsockopt IP_HDRINCL: %v", api.ErrIO, err)
	}
	return &rawSocketDriver{fd: fd}, nil
}

// SendBatch issues one datagram send per packet, destination taken from the
// IPv4 header of each buffer.
func (d *rawSocketDriver) SendBatch(pkts [][]byte, _ []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	for i, pkt := range pkts {
		dst, err := packet.Dst(pkt)
		if err != nil {
			return i, err
		}
		sa := windows.SockaddrInet4{Addr: dst.As4()}
		if err := windows.Sendto(d.fd, pkt, 0, &sa); err != nil {
			if err == windows.WSAEWOULDBLOCK {
				return i, nil
			}
			d.stats.Errors++
			return i, fmt.Errorf("%w: raw sendto: %v", api.ErrIO, err)
		}
		d.stats.PacketsSent++
		d.stats.BytesSent += uint64(len(pkt))
	}
	return len(pkts), nil
}

// RecvBatch drains queued datagrams one per caller buffer.
func (d *rawSocketDriver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	var out [][]byte
	for _, buf := range bufs {
		got, _, err := windows.Recvfrom(d.fd, buf, 0)
		if err != nil {
			if err == windows.WSAEWOULDBLOCK {
				break
			}
			return out, fmt.Errorf("%w: raw recvfrom: %v", api.ErrIO, err)
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
	if err := windows.Closesocket(d.fd); err != nil {
		return fmt.Errorf("raw socket close: %w", err)
	}
	return nil
}
