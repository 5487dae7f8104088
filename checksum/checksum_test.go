// File: checksum/checksum_test.go
// Author: momentics <momentics@gmail.com>

package checksum

import (
	"encoding/binary"
	"net/netip"
	"testing"
)

// TestInternetIPv4Header verifies the checksum of a canonical IPv4 header
// with the checksum field zeroed.
func TestInternetIPv4Header(t *testing.T) {
	hdr := []byte{
		0x45, 0x00, 0x00, 0x3c, 0x1c, 0x46, 0x40, 0x00,
		0x40, 0x06, 0x00, 0x00, 0xac, 0x10, 0x0a, 0x63,
		0xac, 0x10, 0x0a, 0x0c,
	}
	if got := Internet(hdr); got != 0xB1E6 {
		t.Fatalf("Internet() = %#04x, want 0xB1E6", got)
	}

	// Filling the checksum field and recomputing must yield zero.
	binary.BigEndian.PutUint16(hdr[10:], 0xB1E6)
	if got := Internet(hdr); got != 0 {
		t.Fatalf("recompute over filled header = %#04x, want 0", got)
	}
}

// TestInternetEdgeCases checks empty and odd-length inputs.
func TestInternetEdgeCases(t *testing.T) {
	if got := Internet(nil); got != 0xFFFF {
		t.Fatalf("Internet(nil) = %#04x, want 0xFFFF", got)
	}
	// Odd trailing byte is promoted as the high byte of a 16-bit word.
	if got := Internet([]byte{0xAB}); got != ^uint16(0xAB00) {
		t.Fatalf("Internet(odd) = %#04x, want %#04x", got, ^uint16(0xAB00))
	}
}

// TestTransportUDP builds the UDP segment src_port=1234 dst_port=5678
// carrying "Hello" and verifies that writing the computed checksum into the
// segment and recomputing yields zero.
func TestTransportUDP(t *testing.T) {
	src := netip.AddrFrom4([4]byte{192, 168, 1, 1})
	dst := netip.AddrFrom4([4]byte{192, 168, 1, 2})
	payload := []byte("Hello")

	seg := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint16(seg[0:], 1234)
	binary.BigEndian.PutUint16(seg[2:], 5678)
	binary.BigEndian.PutUint16(seg[4:], uint16(len(seg)))
	copy(seg[8:], payload)

	sum := Transport(src, dst, 17, seg)
	if sum != 0x3DAE {
		t.Fatalf("Transport() = %#04x, want 0x3DAE", sum)
	}

	binary.BigEndian.PutUint16(seg[6:], sum)
	if got := Transport(src, dst, 17, seg); got != 0 {
		t.Fatalf("recompute over filled segment = %#04x, want 0", got)
	}
}

// TestTransportFramingInvariance asserts the checksum depends only on the
// pseudo-header fields and segment bytes, not on how the caller sliced them.
func TestTransportFramingInvariance(t *testing.T) {
	src := netip.AddrFrom4([4]byte{10, 0, 0, 1})
	dst := netip.AddrFrom4([4]byte{10, 0, 0, 2})

	seg := []byte{0x00, 0x35, 0x00, 0x35, 0x00, 0x0c, 0x00, 0x00, 0xde, 0xad, 0xbe, 0xef}
	a := Transport(src, dst, 17, seg)

	// A fresh copy of the same bytes in a larger backing array.
	backing := make([]byte, 64)
	n := copy(backing[16:], seg)
	b := Transport(src, dst, 17, backing[16:16+n])

	if a != b {
		t.Fatalf("framing changed checksum: %#04x vs %#04x", a, b)
	}
}

// TestTransportRoundTripProperty appends the computed checksum to arbitrary
// payloads and asserts the extended sum folds to zero.
func TestTransportRoundTripProperty(t *testing.T) {
	src := netip.AddrFrom4([4]byte{172, 16, 10, 99})
	dst := netip.AddrFrom4([4]byte{172, 16, 10, 12})

	for _, tc := range [][]byte{
		{},
		{0x01, 0x02},
		{0xFF, 0xFF, 0xFF, 0xFF},
		[]byte("the quick brown fox jumped over the lazy dog"),
	} {
		// Segment with a trailing, 16-bit aligned zeroed checksum slot.
		seg := append(append([]byte{}, tc...), 0, 0)
		sum := Transport(src, dst, 6, seg)
		binary.BigEndian.PutUint16(seg[len(seg)-2:], sum)
		if got := Transport(src, dst, 6, seg); got != 0 {
			t.Fatalf("payload %x: recompute = %#04x, want 0", tc, got)
		}
	}
}
