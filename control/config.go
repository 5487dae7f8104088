// File: control/config.go
// Author: momentics <momentics@gmail.com>
//
// File/environment configuration loading for the driver facade. Values come
// from a YAML/TOML/JSON file plus PKTDRV_-prefixed environment variables;
// unset fields keep the facade defaults.

package control

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/momentics/pktdrv/facade"
)

// LoadConfig reads a facade configuration from path. The file format is
// whatever viper infers from the extension; every key can be overridden via
// environment, e.g. PKTDRV_FORCE_BACKEND=sendmmsg.
func LoadConfig(path string) (*facade.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PKTDRV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := facade.DefaultConfig()
	// Every key needs a default so AutomaticEnv can override it even when
	// the file leaves it out.
	v.SetDefault("protocol", cfg.Protocol)
	v.SetDefault("interface_name", cfg.InterfaceName)
	v.SetDefault("queue_id", cfg.QueueID)
	v.SetDefault("xsk_map_pin", cfg.XSKMapPin)
	v.SetDefault("port_id", cfg.PortID)
	v.SetDefault("force_backend", cfg.ForceBackend)
	v.SetDefault("queue_depth", cfg.QueueDepth)
	v.SetDefault("promiscuous", cfg.Promiscuous)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config %s: %w", path, err)
	}
	return cfg, nil
}
