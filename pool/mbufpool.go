// File: pool/mbufpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Preallocated packet-buffer pool for the poll-mode plane. One pool is
// created per process at environment init; TX and RX bursts draw mbufs from
// it and return them after the NIC (or the copy-out path) is done. All
// buffers share one backing allocation; an mbuf is identified by its index.

package pool

import (
	"fmt"

	"github.com/momentics/pktdrv/api"
)

// Mbuf is one packet buffer on loan from an MbufPool.
type Mbuf struct {
	idx  uint32
	data []byte // full-capacity slice into the pool backing
	len  uint32
}

// Bytes returns the filled portion of the buffer.
func (m *Mbuf) Bytes() []byte { return m.data[:m.len] }

// Cap returns the buffer capacity.
func (m *Mbuf) Cap() int { return len(m.data) }

// Append copies p into the buffer after the current fill point, mirroring
// the append-then-transmit flow of the burst path.
func (m *Mbuf) Append(p []byte) error {
	if int(m.len)+len(p) > len(m.data) {
		return fmt.Errorf("%w: mbuf capacity %d, need %d",
			api.ErrResourceExhausted, len(m.data), int(m.len)+len(p))
	}
	copy(m.data[m.len:], p)
	m.len += uint32(len(p))
	return nil
}

// Reset empties the buffer for reuse.
func (m *Mbuf) Reset() { m.len = 0 }

// MbufPool is a fixed-population pool of equally sized packet buffers with a
// lock-free free list. Safe for concurrent Alloc/Free.
type MbufPool struct {
	backing []byte
	bufs    []Mbuf
	free    *Ring[uint32]
	bufSize uint32
}

// NewMbufPool preallocates count buffers of size bytes each. The free ring
// is sized to the smallest power of two above count; the population stays
// count.
func NewMbufPool(count, size uint32) (*MbufPool, error) {
	if count == 0 || size == 0 {
		return nil, fmt.Errorf("%w: zero pool dimensions", api.ErrInvalidArgument)
	}
	ringSize := uint64(1)
	for ringSize < uint64(count)+1 {
		ringSize <<= 1
	}

	p := &MbufPool{
		backing: make([]byte, uint64(count)*uint64(size)),
		bufs:    make([]Mbuf, count),
		free:    NewRing[uint32](ringSize),
		bufSize: size,
	}
	for i := uint32(0); i < count; i++ {
		start := uint64(i) * uint64(size)
		p.bufs[i] = Mbuf{idx: i, data: p.backing[start : start+uint64(size)]}
		p.free.Enqueue(i)
	}
	return p, nil
}

// Alloc loans one empty mbuf; nil when the pool is drained.
func (p *MbufPool) Alloc() *Mbuf {
	idx, ok := p.free.Dequeue()
	if !ok {
		return nil
	}
	m := &p.bufs[idx]
	m.Reset()
	return m
}

// AllocBatch loans up to n mbufs, returning the accepted prefix. A short
// result is pool pressure, not an error.
func (p *MbufPool) AllocBatch(n int) []*Mbuf {
	idxs := make([]uint32, n)
	got := p.free.DequeueBatch(idxs)
	out := make([]*Mbuf, got)
	for i := 0; i < got; i++ {
		m := &p.bufs[idxs[i]]
		m.Reset()
		out[i] = m
	}
	return out
}

// Free returns an mbuf to the pool.
func (p *MbufPool) Free(m *Mbuf) {
	if m == nil {
		return
	}
	p.free.Enqueue(m.idx)
}

// Available returns the current free population.
func (p *MbufPool) Available() int { return p.free.Len() }
