// File: facade/driver.go
// Unified facade layer for the pktdrv packet driver core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Driver struct, which owns the selected backend
// behind a single send-batch/receive-batch/stats/close surface. Open runs
// the capability probe and the backend selector, initializes the chosen
// backend and falls back down the priority ladder on initializer failure;
// steady-state operations never change backends. The facade holds exactly
// one active backend between a successful Open and Close.

package facade

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/momentics/pktdrv/api"
	"github.com/momentics/pktdrv/capability"
	"github.com/momentics/pktdrv/internal/backend"
)

// Config holds parameters immutable per run.
type Config struct {
	Protocol      int    `mapstructure:"protocol"`       // L4 protocol number for the raw L3 path
	InterfaceName string `mapstructure:"interface_name"` // NIC name, required for AF_XDP
	QueueID       uint32 `mapstructure:"queue_id"`       // NIC queue for AF_XDP
	XSKMapPin     string `mapstructure:"xsk_map_pin"`    // pinned xsks_map path for AF_XDP
	QueueDepth    uint32 `mapstructure:"queue_depth"`    // io_uring submission ring depth
	PortID        int    `mapstructure:"port_id"`        // poll-mode port selection
	ForceBackend  string `mapstructure:"force_backend"`  // override the selector
	Promiscuous   bool   `mapstructure:"promiscuous"`    // poll-mode promiscuous enable
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		QueueDepth:  backend.DefaultQueueDepth,
		Promiscuous: true,
	}
}

// Driver is the facade over the selected backend.
type Driver struct {
	caps   api.Capabilities
	impl   api.Driver
	config *Config
	log    *logrus.Entry
	closed bool
}

// Open probes the host, selects the highest-priority available backend and
// initializes it, walking down the priority ladder when an initializer
// fails. A forced backend is honored without fallback: forcing something
// unavailable is unsupported, and forcing is an explicit choice to fail
// rather than degrade.
func Open(cfg *Config) (*Driver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	caps := capability.Probe()
	log := logrus.WithField("component", "pktdrv")
	log.WithField("caps", caps.String()).Debug("host probed")

	bcfg := backend.Config{
		Protocol:      cfg.Protocol,
		InterfaceName: cfg.InterfaceName,
		QueueID:       cfg.QueueID,
		XSKMapPin:     cfg.XSKMapPin,
		QueueDepth:    cfg.QueueDepth,
		PortID:        cfg.PortID,
		Promiscuous:   cfg.Promiscuous,
	}

	if cfg.ForceBackend != "" {
		kind, err := api.ParseBackendKind(cfg.ForceBackend)
		if err != nil {
			return nil, err
		}
		if !backend.Compiled(kind) || !contains(capability.Fallbacks(caps, kind), kind) {
			return nil, fmt.Errorf("%w: forced backend %s unavailable on this host",
				api.ErrUnsupported, kind)
		}
		impl, err := backend.Open(kind, bcfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", api.ErrBackendInit, kind, err)
		}
		log.WithField("backend", kind.String()).Info("backend forced")
		return &Driver{caps: caps, impl: impl, config: cfg, log: log}, nil
	}

	var firstErr error
	for _, kind := range capability.Fallbacks(caps, api.BackendNone) {
		if !backend.Compiled(kind) {
			continue
		}
		impl, err := backend.Open(kind, bcfg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			log.WithField("backend", kind.String()).WithError(err).
				Warn("backend init failed, falling back")
			continue
		}
		log.WithField("backend", kind.String()).Info("backend selected")
		return &Driver{caps: caps, impl: impl, config: cfg, log: log}, nil
	}
	if firstErr == nil {
		firstErr = api.ErrUnsupported
	}
	return nil, fmt.Errorf("%w: no backend could be initialized: %v",
		api.ErrBackendInit, firstErr)
}

func contains(kinds []api.BackendKind, k api.BackendKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Capabilities returns the probe snapshot the selection was made from.
func (d *Driver) Capabilities() api.Capabilities { return d.caps }

// Backend reports the active backend kind, or BackendNone after Close.
func (d *Driver) Backend() api.BackendKind {
	if d.closed {
		return api.BackendNone
	}
	return d.impl.Kind()
}

// SendBatch forwards the batch to the active backend. See api.Driver.
func (d *Driver) SendBatch(pkts [][]byte, dests []api.Dest) (int, error) {
	if d.closed {
		return 0, api.ErrClosed
	}
	return d.impl.SendBatch(pkts, dests)
}

// RecvBatch forwards to the active backend. See api.Driver.
func (d *Driver) RecvBatch(bufs [][]byte) ([][]byte, error) {
	if d.closed {
		return nil, api.ErrClosed
	}
	return d.impl.RecvBatch(bufs)
}

// Stats returns the active backend's counter snapshot; zeroes after Close.
func (d *Driver) Stats() api.Stats {
	if d.closed {
		return api.Stats{}
	}
	return d.impl.Stats()
}

// Close releases the backend. Idempotent: the second call is a no-op.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.log.WithField("backend", d.impl.Kind().String()).Info("driver closed")
	return d.impl.Close()
}
