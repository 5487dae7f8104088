// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Lock-free fixed-capacity ring used as the mbuf free list of the poll-mode
// plane. The pool is shared process-wide, so enqueue/dequeue must be safe
// across threads; padding separates the hot indices from the data.

package pool

import (
	"sync/atomic"
)

// Ring is a lock-free fixed-capacity ring (power-of-two size).
type Ring[T any] struct {
	data []T
	mask uint64
	head uint64
	tail uint64
	_    [64]byte // Padding for hot/cold separation
}

// NewRing allocates a ring with the given size (must be a power of two).
func NewRing[T any](size uint64) *Ring[T] {
	if size == 0 || (size&(size-1)) != 0 {
		panic("ring size must be power of two")
	}
	return &Ring[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds an item; returns false if full.
func (r *Ring[T]) Enqueue(val T) bool {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if (tail - head) == uint64(len(r.data)) {
		return false
	}
	idx := tail & r.mask
	r.data[idx] = val
	atomic.AddUint64(&r.tail, 1)
	return true
}

// Dequeue removes and returns (item, ok); ok==false if empty.
func (r *Ring[T]) Dequeue() (res T, ok bool) {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head == tail {
		return res, false
	}
	idx := head & r.mask
	res = r.data[idx]
	atomic.AddUint64(&r.head, 1)
	return res, true
}

// DequeueBatch fills dst with up to len(dst) items and returns the count.
// Used by the TX burst path to grab a whole batch of mbufs in one sweep.
func (r *Ring[T]) DequeueBatch(dst []T) int {
	n := 0
	for n < len(dst) {
		v, ok := r.Dequeue()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Len returns the number of items in the ring.
func (r *Ring[T]) Len() int {
	return int(atomic.LoadUint64(&r.tail) - atomic.LoadUint64(&r.head))
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}
