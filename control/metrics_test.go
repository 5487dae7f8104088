// File: control/metrics_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/pktdrv/api"
)

type fakeSource struct {
	st api.Stats
}

func (f *fakeSource) Stats() api.Stats         { return f.st }
func (f *fakeSource) Backend() api.BackendKind { return api.BackendSendmmsg }

func TestStatsCollector(t *testing.T) {
	src := &fakeSource{st: api.Stats{
		PacketsSent: 42,
		BytesSent:   1337,
		Errors:      3,
	}}

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewStatsCollector(src)); err != nil {
		t.Fatal(err)
	}

	fams, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]float64{}
	for _, fam := range fams {
		for _, m := range fam.GetMetric() {
			got[fam.GetName()] = m.GetCounter().GetValue()
			for _, l := range m.GetLabel() {
				if l.GetName() == "backend" && l.GetValue() != "sendmmsg" {
					t.Errorf("backend label = %q", l.GetValue())
				}
			}
		}
	}

	if got["pktdrv_packets_sent_total"] != 42 {
		t.Errorf("packets_sent = %v, want 42", got["pktdrv_packets_sent_total"])
	}
	if got["pktdrv_bytes_sent_total"] != 1337 {
		t.Errorf("bytes_sent = %v, want 1337", got["pktdrv_bytes_sent_total"])
	}
	if got["pktdrv_errors_total"] != 3 {
		t.Errorf("errors = %v, want 3", got["pktdrv_errors_total"])
	}
	if _, ok := got["pktdrv_packets_received_total"]; !ok {
		t.Error("packets_received metric missing")
	}
}
