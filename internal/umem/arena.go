// File: internal/umem/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-frame memory arena shared with the kernel on the AF_XDP path. Frames
// are addressed by byte offset into the area, never by pointer: offsets are
// what travels through the fill, completion, rx and tx rings. The arena
// tracks frame ownership so that an address is held by exactly one party at
// a time; a double release is reported instead of corrupting the rings.

package umem

import (
	"fmt"

	"github.com/eapache/queue"

	"github.com/momentics/pktdrv/api"
)

// Arena partitions a contiguous memory area into numbered fixed-size frames.
type Arena struct {
	mem       []byte
	frameSize uint32
	numFrames uint32

	// FIFO of frame addresses available to the user side. FIFO order
	// spreads reuse across the whole area rather than hammering the same
	// few frames.
	free *queue.Queue

	// userHeld[i] is true while frame i is out on loan from Alloc and has
	// not yet been returned via Free.
	userHeld []bool
}

// New wraps mem, which must be exactly numFrames*frameSize bytes, and marks
// the frames in [firstFree, numFrames) as free (queued in the FIFO). Frames
// below firstFree are considered handed to the kernel already (the fill
// ring) and enter circulation through Recycle.
func New(mem []byte, numFrames, frameSize, firstFree uint32) (*Arena, error) {
	if frameSize == 0 || numFrames == 0 {
		return nil, fmt.Errorf("%w: zero arena dimensions", api.ErrInvalidArgument)
	}
	if uint64(len(mem)) != uint64(numFrames)*uint64(frameSize) {
		return nil, fmt.Errorf("%w: area is %d bytes, want %d frames of %d",
			api.ErrInvalidArgument, len(mem), numFrames, frameSize)
	}
	if firstFree > numFrames {
		return nil, fmt.Errorf("%w: firstFree %d beyond %d frames",
			api.ErrInvalidArgument, firstFree, numFrames)
	}

	a := &Arena{
		mem:       mem,
		frameSize: frameSize,
		numFrames: numFrames,
		free:      queue.New(),
		userHeld:  make([]bool, numFrames),
	}
	for i := firstFree; i < numFrames; i++ {
		a.free.Add(uint64(i) * uint64(frameSize))
	}
	return a, nil
}

// NumFrames returns the total frame count.
func (a *Arena) NumFrames() uint32 { return a.numFrames }

// FrameSize returns the fixed frame size in bytes.
func (a *Arena) FrameSize() uint32 { return a.frameSize }

// FreeCount returns the number of frames currently loanable.
func (a *Arena) FreeCount() int { return a.free.Length() }

// Bytes exposes the whole backing area, for UMEM registration.
func (a *Arena) Bytes() []byte { return a.mem }

// Alloc loans out one free frame address. ok is false when every frame is
// in flight; the caller reclaims completions and retries.
func (a *Arena) Alloc() (addr uint64, ok bool) {
	if a.free.Length() == 0 {
		return 0, false
	}
	addr = a.free.Remove().(uint64)
	a.userHeld[addr/uint64(a.frameSize)] = true
	return addr, true
}

// Free returns a frame address to circulation. Addresses the arena did not
// loan out (double free, foreign address) are rejected so that no frame can
// end up referenced by two rings at once.
func (a *Arena) Free(addr uint64) error {
	idx, err := a.index(addr)
	if err != nil {
		return err
	}
	if !a.userHeld[idx] {
		return fmt.Errorf("%w: frame %#x freed twice", api.ErrInvalidArgument, addr)
	}
	a.userHeld[idx] = false
	a.free.Add(addr)
	return nil
}

// Recycle enters a kernel-returned frame address that was never loaned by
// Alloc (an rx-ring frame that started in the fill ring) into the free
// FIFO. Frames loaned by Alloc, such as those coming back on the completion
// ring, are rejected here and return through Free.
func (a *Arena) Recycle(addr uint64) error {
	idx, err := a.index(addr)
	if err != nil {
		return err
	}
	if a.userHeld[idx] {
		return fmt.Errorf("%w: frame %#x is user-held", api.ErrInvalidArgument, addr)
	}
	a.free.Add(addr)
	return nil
}

// Frame returns the byte slice backing the frame at addr.
func (a *Arena) Frame(addr uint64) ([]byte, error) {
	if _, err := a.index(addr); err != nil {
		return nil, err
	}
	return a.mem[addr : addr+uint64(a.frameSize)], nil
}

func (a *Arena) index(addr uint64) (uint32, error) {
	if addr%uint64(a.frameSize) != 0 || addr >= uint64(a.numFrames)*uint64(a.frameSize) {
		return 0, fmt.Errorf("%w: address %#x outside arena", api.ErrInvalidArgument, addr)
	}
	return uint32(addr / uint64(a.frameSize)), nil
}
