//go:build linux
// +build linux

// File: capability/probe_linux_test.go
// Author: momentics <momentics@gmail.com>

package capability

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseKernelRelease(t *testing.T) {
	cases := []struct {
		release      string
		major, minor int
	}{
		{"6.8.0-45-generic", 6, 8},
		{"5.1", 5, 1},
		{"4.18.0-553.el8_10.x86_64", 4, 18},
		{"3.10.0", 3, 10},
		{"garbage", 0, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		maj, min := parseKernelRelease(tc.release)
		if maj != tc.major || min != tc.minor {
			t.Errorf("parseKernelRelease(%q) = %d.%d, want %d.%d",
				tc.release, maj, min, tc.major, tc.minor)
		}
	}
}

func TestNumaNodesParse(t *testing.T) {
	dir := t.TempDir()
	write := func(content string) string {
		p := filepath.Join(dir, "online")
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	if got := numaNodes(write("0-3\n")); got != 4 {
		t.Errorf("range mask: nodes = %d, want 4", got)
	}
	if got := numaNodes(write("0\n")); got != 1 {
		t.Errorf("single node: nodes = %d, want 1", got)
	}
	if got := numaNodes(filepath.Join(dir, "missing")); got != 0 {
		t.Errorf("missing file: nodes = %d, want 0", got)
	}
}
