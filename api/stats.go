// File: api/stats.go
// Author: momentics <momentics@gmail.com>
//
// Driver counter block. Counters only grow while a backend is open and are
// reset exactly on backend close.

package api

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats is a snapshot of the monotonically non-decreasing driver counters.
type Stats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	Errors          uint64
}

// Add accumulates another snapshot into s.
func (s *Stats) Add(o Stats) {
	s.PacketsSent += o.PacketsSent
	s.PacketsReceived += o.PacketsReceived
	s.BytesSent += o.BytesSent
	s.BytesReceived += o.BytesReceived
	s.Errors += o.Errors
}

// String renders the counters in humanized form.
func (s Stats) String() string {
	return fmt.Sprintf("tx=%s pkts/%s rx=%s pkts/%s errors=%s",
		humanize.Comma(int64(s.PacketsSent)),
		humanize.Bytes(s.BytesSent),
		humanize.Comma(int64(s.PacketsReceived)),
		humanize.Bytes(s.BytesReceived),
		humanize.Comma(int64(s.Errors)),
	)
}
