//go:build !dpdk
// +build !dpdk

// File: internal/backend/registry_test.go
// Author: momentics <momentics@gmail.com>

package backend

import (
	"errors"
	"testing"

	"github.com/momentics/pktdrv/api"
)

func TestRegistryExcludesUncompiledPlanes(t *testing.T) {
	if Compiled(api.BackendDPDK) {
		t.Fatal("dpdk must not be registered without its build tag")
	}
	if _, err := Open(api.BackendDPDK, Config{}); !errors.Is(err, api.ErrUnsupported) {
		t.Fatalf("opening an uncompiled backend: got %v, want ErrUnsupported", err)
	}
}

func TestRegistryRawAlwaysPresent(t *testing.T) {
	if !Compiled(api.BackendRawSocket) {
		t.Fatal("raw socket driver must always be registered")
	}
}
