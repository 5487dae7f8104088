// File: packet/ipv4_test.go
// Author: momentics <momentics@gmail.com>

package packet

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/checksum"
)

func addr(a, b, c, d byte) netip.Addr { return netip.AddrFrom4([4]byte{a, b, c, d}) }

func TestBuildHeaderFields(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	pkt, err := Build(IPv4{
		ID:       0x1c46,
		Protocol: ProtoTCP,
		Src:      addr(172, 16, 10, 99),
		Dst:      addr(172, 16, 10, 12),
	}, payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkt) != HeaderLen+len(payload) {
		t.Fatalf("length %d, want %d", len(pkt), HeaderLen+len(payload))
	}
	if pkt[0] != 0x45 {
		t.Errorf("version/IHL = %#02x, want 0x45", pkt[0])
	}
	if got := binary.BigEndian.Uint16(pkt[2:]); got != uint16(len(pkt)) {
		t.Errorf("total length field %d, want %d", got, len(pkt))
	}
	if pkt[8] != 64 {
		t.Errorf("TTL = %d, want default 64", pkt[8])
	}
	if pkt[9] != ProtoTCP {
		t.Errorf("protocol = %d, want %d", pkt[9], ProtoTCP)
	}
	// Header checksum must validate: recomputing over the header with the
	// checksum in place folds to zero.
	if got := checksum.Internet(pkt[:HeaderLen]); got != 0 {
		t.Errorf("header checksum does not validate: fold = %#04x", got)
	}
	// Payload is carried verbatim.
	for i, b := range payload {
		if pkt[HeaderLen+i] != b {
			t.Fatalf("payload byte %d mangled", i)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	src, dst := addr(10, 0, 0, 1), addr(10, 0, 0, 2)

	if _, err := Build(IPv4{Protocol: 99, Src: src, Dst: dst}, nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("unknown protocol: got %v, want ErrInvalidArgument", err)
	}

	big := make([]byte, MaxDatagram-HeaderLen+1)
	if _, err := Build(IPv4{Protocol: ProtoUDP, Src: src, Dst: dst}, big); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("oversize payload: got %v, want ErrInvalidArgument", err)
	}

	if _, err := Build(IPv4{Protocol: ProtoUDP}, nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("zero addresses: got %v, want ErrInvalidArgument", err)
	}
}

func TestBuildUDPChecksum(t *testing.T) {
	h := IPv4{
		Src: addr(192, 168, 1, 1),
		Dst: addr(192, 168, 1, 2),
	}
	pkt, err := BuildUDP(h, 1234, 5678, []byte("Hello"))
	if err != nil {
		t.Fatal(err)
	}

	seg := pkt[HeaderLen:]
	if got := binary.BigEndian.Uint16(seg[4:]); got != uint16(len(seg)) {
		t.Errorf("udp length field %d, want %d", got, len(seg))
	}
	// The filled segment must fold to zero against its pseudo-header.
	if got := checksum.Transport(h.Src, h.Dst, ProtoUDP, seg); got != 0 {
		t.Errorf("udp checksum does not validate: fold = %#04x", got)
	}
}

func TestDstExtraction(t *testing.T) {
	pkt, err := Build(IPv4{Protocol: ProtoUDP, Src: addr(10, 1, 2, 3), Dst: addr(10, 4, 5, 6)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := Dst(pkt)
	if err != nil {
		t.Fatal(err)
	}
	if d != addr(10, 4, 5, 6) {
		t.Errorf("Dst() = %v, want 10.4.5.6", d)
	}

	if _, err := Dst(pkt[:19]); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("short buffer: got %v, want ErrInvalidArgument", err)
	}
}
