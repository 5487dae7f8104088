//go:build linux
// +build linux

// File: internal/backend/sendmmsg_linux_test.go
// Author: momentics <momentics@gmail.com>

package backend

import (
	"fmt"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/momentics/pktdrv/api"
)

func loopbackListener(t *testing.T) (*net.UDPConn, api.Dest) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	port := uint16(conn.LocalAddr().(*net.UDPAddr).Port)
	return conn, api.Dest{Addr: netip.AddrFrom4([4]byte{127, 0, 0, 1}), Port: port}
}

// TestSendmmsgLoopback submits a batch of datagrams to a bound loopback
// receiver and checks that exactly the accepted prefix arrives with
// per-index payloads intact.
func TestSendmmsgLoopback(t *testing.T) {
	conn, dest := loopbackListener(t)

	d, err := Open(api.BackendSendmmsg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	const batch = 32
	pkts := make([][]byte, batch)
	dests := make([]api.Dest, batch)
	for i := range pkts {
		pkts[i] = []byte(fmt.Sprintf("packet-%02d", i))
		dests[i] = dest
	}

	k, err := d.SendBatch(pkts, dests)
	if err != nil {
		t.Fatal(err)
	}
	if k < 1 || k > batch {
		t.Fatalf("accepted count %d out of range (0,%d]", k, batch)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	for i := 0; i < k; i++ {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("receiver got %d/%d datagrams: %v", i, k, err)
		}
		want := fmt.Sprintf("packet-%02d", i)
		if string(buf[:n]) != want {
			t.Fatalf("datagram %d = %q, want %q", i, buf[:n], want)
		}
	}

	// Batch accounting: packets_sent grew by k, bytes_sent by the sum of
	// the first k payload lengths.
	st := d.Stats()
	if st.PacketsSent != uint64(k) {
		t.Errorf("stats.PacketsSent = %d, want %d", st.PacketsSent, k)
	}
	var wantBytes uint64
	for i := 0; i < k; i++ {
		wantBytes += uint64(len(pkts[i]))
	}
	if st.BytesSent != wantBytes {
		t.Errorf("stats.BytesSent = %d, want %d", st.BytesSent, wantBytes)
	}
}

// TestSendmmsgHomogeneous exercises the single-destination mode.
func TestSendmmsgHomogeneous(t *testing.T) {
	conn, dest := loopbackListener(t)

	d, err := Open(api.BackendSendmmsg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	pkts := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	k, err := d.SendBatch(pkts, []api.Dest{dest})
	if err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	for i := 0; i < k; i++ {
		if _, err := conn.Read(buf); err != nil {
			t.Fatalf("datagram %d missing: %v", i, err)
		}
	}
}

func TestSendmmsgArgumentChecks(t *testing.T) {
	d, err := Open(api.BackendSendmmsg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	dest := api.Dest{Addr: netip.AddrFrom4([4]byte{127, 0, 0, 1}), Port: 9}

	if _, err := d.SendBatch([][]byte{{1}, {2}}, []api.Dest{dest, dest, dest}); err == nil {
		t.Error("mismatched destination count must fail")
	}
	if k, err := d.SendBatch(nil, nil); err != nil || k != 0 {
		t.Errorf("empty batch: k=%d err=%v", k, err)
	}
}

func TestSendmmsgCloseIdempotent(t *testing.T) {
	d, err := Open(api.BackendSendmmsg, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if st := d.Stats(); st.PacketsSent != 0 {
		t.Error("stats must reset on close")
	}
}
