// File: control/config_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pktdrv.yaml")
	content := `
protocol: 17
interface_name: eth1
queue_depth: 512
force_backend: sendmmsg
promiscuous: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Protocol != 17 {
		t.Errorf("protocol = %d, want 17", cfg.Protocol)
	}
	if cfg.InterfaceName != "eth1" {
		t.Errorf("interface_name = %q, want eth1", cfg.InterfaceName)
	}
	if cfg.QueueDepth != 512 {
		t.Errorf("queue_depth = %d, want 512", cfg.QueueDepth)
	}
	if cfg.ForceBackend != "sendmmsg" {
		t.Errorf("force_backend = %q", cfg.ForceBackend)
	}
	if cfg.Promiscuous {
		t.Error("promiscuous should be false")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("protocol: 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QueueDepth != 256 {
		t.Errorf("queue_depth default = %d, want 256", cfg.QueueDepth)
	}
	if !cfg.Promiscuous {
		t.Error("promiscuous default should be true")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
}
