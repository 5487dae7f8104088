// File: internal/umem/arena_test.go
// Author: momentics <momentics@gmail.com>

package umem

import (
	"errors"
	"testing"

	"github.com/momentics/pktdrv/api"
)

const (
	testFrames    = 64
	testFrameSize = 256
)

func newTestArena(t *testing.T, firstFree uint32) *Arena {
	t.Helper()
	mem := make([]byte, testFrames*testFrameSize)
	a, err := New(mem, testFrames, testFrameSize, firstFree)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestArenaDimensions(t *testing.T) {
	if _, err := New(make([]byte, 100), 4, 256, 0); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("size mismatch: got %v, want ErrInvalidArgument", err)
	}
	if _, err := New(nil, 0, 256, 0); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("zero frames: got %v, want ErrInvalidArgument", err)
	}

	a := newTestArena(t, 32)
	if a.FreeCount() != 32 {
		t.Errorf("free count = %d, want 32 (frames below firstFree belong to the fill ring)", a.FreeCount())
	}
}

// TestArenaConservation simulates many send batches: every frame address is
// at all times held by exactly one of {free FIFO, in-flight set}, and the
// union is always the full frame set.
func TestArenaConservation(t *testing.T) {
	a := newTestArena(t, 0)

	inFlight := make(map[uint64]bool)
	for round := 0; round < 100; round++ {
		// Drain a "batch" of up to 10 frames into flight.
		for i := 0; i < 10; i++ {
			addr, ok := a.Alloc()
			if !ok {
				break
			}
			if inFlight[addr] {
				t.Fatalf("round %d: frame %#x loaned twice", round, addr)
			}
			if addr%testFrameSize != 0 || addr >= testFrames*testFrameSize {
				t.Fatalf("round %d: address %#x outside arena", round, addr)
			}
			inFlight[addr] = true
		}
		// "Complete" half of the in-flight frames.
		half := len(inFlight) / 2
		n := 0
		for addr := range inFlight {
			if n++; n > half {
				break
			}
			delete(inFlight, addr)
			if err := a.Free(addr); err != nil {
				t.Fatalf("round %d: free %#x: %v", round, addr, err)
			}
		}

		if got := a.FreeCount() + len(inFlight); got != testFrames {
			t.Fatalf("round %d: conservation broken: free+inflight = %d, want %d",
				round, got, testFrames)
		}
	}
}

func TestArenaDoubleFree(t *testing.T) {
	a := newTestArena(t, 0)
	addr, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc failed on full arena")
	}
	if err := a.Free(addr); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(addr); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("double free: got %v, want ErrInvalidArgument", err)
	}
	if err := a.Free(uint64(testFrames * testFrameSize)); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("foreign address: got %v, want ErrInvalidArgument", err)
	}
	if err := a.Free(3); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("misaligned address: got %v, want ErrInvalidArgument", err)
	}
}

func TestArenaExhaustion(t *testing.T) {
	a := newTestArena(t, 0)
	seen := make(map[uint64]bool)
	for {
		addr, ok := a.Alloc()
		if !ok {
			break
		}
		if seen[addr] {
			t.Fatalf("frame %#x handed out twice", addr)
		}
		seen[addr] = true
	}
	if len(seen) != testFrames {
		t.Fatalf("drained %d frames, want %d", len(seen), testFrames)
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("alloc succeeded on exhausted arena")
	}
}

func TestArenaFrameAccess(t *testing.T) {
	a := newTestArena(t, 0)
	addr, _ := a.Alloc()
	buf, err := a.Frame(addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != testFrameSize {
		t.Fatalf("frame length %d, want %d", len(buf), testFrameSize)
	}
	// Writes land in the backing area at the frame offset.
	buf[0] = 0xAB
	if a.Bytes()[addr] != 0xAB {
		t.Fatal("frame slice does not alias the arena")
	}

	if _, err := a.Frame(1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("misaligned frame access: got %v, want ErrInvalidArgument", err)
	}
}

func TestArenaRecycle(t *testing.T) {
	// Frames handed to the fill ring at construction re-enter circulation
	// through Recycle when a ring refill fails.
	a := newTestArena(t, 32)
	if err := a.Recycle(0); err != nil {
		t.Fatal(err)
	}
	if a.FreeCount() != 33 {
		t.Fatalf("free count = %d, want 33", a.FreeCount())
	}

	addr, _ := a.Alloc()
	if err := a.Recycle(addr); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("recycling a user-held frame: got %v, want ErrInvalidArgument", err)
	}
}
