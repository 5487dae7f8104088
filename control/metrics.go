// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus bridge for the driver counter block. The collector snapshots
// the facade on every scrape; counters track the driver's stats block and
// inherit its monotonicity.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/pktdrv/api"
)

// StatsSource is anything exposing a driver counter snapshot; the facade
// Driver satisfies it.
type StatsSource interface {
	Stats() api.Stats
	Backend() api.BackendKind
}

// StatsCollector exports a StatsSource as prometheus metrics.
type StatsCollector struct {
	src StatsSource

	packetsSent     *prometheus.Desc
	packetsReceived *prometheus.Desc
	bytesSent       *prometheus.Desc
	bytesReceived   *prometheus.Desc
	errors          *prometheus.Desc
}

// NewStatsCollector wraps src for registration with a prometheus registry.
func NewStatsCollector(src StatsSource) *StatsCollector {
	labels := []string{"backend"}
	return &StatsCollector{
		src: src,
		packetsSent: prometheus.NewDesc(
			"pktdrv_packets_sent_total", "Packets handed off for transmission.", labels, nil),
		packetsReceived: prometheus.NewDesc(
			"pktdrv_packets_received_total", "Frames delivered to receive batches.", labels, nil),
		bytesSent: prometheus.NewDesc(
			"pktdrv_bytes_sent_total", "Payload bytes handed off for transmission.", labels, nil),
		bytesReceived: prometheus.NewDesc(
			"pktdrv_bytes_received_total", "Payload bytes delivered to receive batches.", labels, nil),
		errors: prometheus.NewDesc(
			"pktdrv_errors_total", "Per-packet and system-call failures.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsSent
	ch <- c.packetsReceived
	ch <- c.bytesSent
	ch <- c.bytesReceived
	ch <- c.errors
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	backend := c.src.Backend().String()
	for _, m := range []struct {
		desc *prometheus.Desc
		v    uint64
	}{
		{c.packetsSent, st.PacketsSent},
		{c.packetsReceived, st.PacketsReceived},
		{c.bytesSent, st.BytesSent},
		{c.bytesReceived, st.BytesReceived},
		{c.errors, st.Errors},
	} {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.v), backend)
	}
}
