// File: packet/ipv4.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IPv4 datagram assembly for backends that require full L3 headers
// (raw socket with IP_HDRINCL, AF_XDP, the poll-mode plane). The builder
// emits the fixed 20-byte header, no options, all multi-byte fields in
// network byte order.

package packet

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/checksum"
)

// HeaderLen is the fixed IPv4 header length emitted by the builder.
const HeaderLen = 20

// MaxDatagram is the IPv4 total-length ceiling.
const MaxDatagram = 0xFFFF

// IPv4 describes one datagram to assemble.
type IPv4 struct {
	TOS      uint8
	ID       uint16
	TTL      uint8 // 0 means the default of 64
	Protocol uint8
	Src      netip.Addr
	Dst      netip.Addr
}

// Protocol numbers the builder accepts for header synthesis.
const (
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17
	ProtoRaw  = 255
)

func validProtocol(p uint8) bool {
	switch p {
	case ProtoICMP, ProtoTCP, ProtoUDP, ProtoRaw:
		return true
	}
	return false
}

// Build assembles a complete IPv4 datagram: 20-byte header followed by the
// payload verbatim. The header checksum is computed with the checksum field
// zeroed and then written in place. Transport checksums inside payload are
// the caller's job (see BuildUDP).
func Build(h IPv4, payload []byte) ([]byte, error) {
	if !validProtocol(h.Protocol) {
		return nil, fmt.Errorf("%w: protocol %d", api.ErrInvalidArgument, h.Protocol)
	}
	if !h.Src.Is4() || !h.Dst.Is4() {
		return nil, fmt.Errorf("%w: source and destination must be IPv4", api.ErrInvalidArgument)
	}
	total := HeaderLen + len(payload)
	if total > MaxDatagram {
		return nil, fmt.Errorf("%w: datagram length %d exceeds 65535", api.ErrInvalidArgument, total)
	}

	ttl := h.TTL
	if ttl == 0 {
		ttl = 64
	}

	pkt := make([]byte, total)
	pkt[0] = 0x45 // version 4, IHL 5
	pkt[1] = h.TOS
	binary.BigEndian.PutUint16(pkt[2:], uint16(total))
	binary.BigEndian.PutUint16(pkt[4:], h.ID)
	// flags/fragment offset stay zero
	pkt[8] = ttl
	pkt[9] = h.Protocol
	src := h.Src.As4()
	dst := h.Dst.As4()
	copy(pkt[12:16], src[:])
	copy(pkt[16:20], dst[:])

	binary.BigEndian.PutUint16(pkt[10:], checksum.Internet(pkt[:HeaderLen]))

	copy(pkt[HeaderLen:], payload)
	return pkt, nil
}

// BuildUDP assembles a UDP/IPv4 datagram: the UDP header is synthesized,
// its checksum computed over the pseudo-header and payload, and the whole
// segment wrapped by Build. A computed checksum of zero is emitted as-is.
func BuildUDP(h IPv4, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	segLen := 8 + len(payload)
	if segLen > MaxDatagram-HeaderLen {
		return nil, fmt.Errorf("%w: udp segment length %d", api.ErrInvalidArgument, segLen)
	}

	seg := make([]byte, segLen)
	binary.BigEndian.PutUint16(seg[0:], srcPort)
	binary.BigEndian.PutUint16(seg[2:], dstPort)
	binary.BigEndian.PutUint16(seg[4:], uint16(segLen))
	copy(seg[8:], payload)

	binary.BigEndian.PutUint16(seg[6:], checksum.Transport(h.Src, h.Dst, ProtoUDP, seg))

	h.Protocol = ProtoUDP
	return Build(h, seg)
}

// Dst extracts the destination address from a raw IPv4 buffer (bytes 16-19).
// Buffers shorter than a full header are an invalid argument, distinguished
// from send failures.
func Dst(pkt []byte) (netip.Addr, error) {
	if len(pkt) < HeaderLen {
		return netip.Addr{}, fmt.Errorf("%w: buffer %d bytes, need %d for IPv4 header",
			api.ErrInvalidArgument, len(pkt), HeaderLen)
	}
	return netip.AddrFrom4([4]byte(pkt[16:20])), nil
}
