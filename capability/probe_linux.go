//go:build linux
// +build linux

// File: capability/probe_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux capability probing: kernel release via uname(2), NUMA topology from
// sysfs. Bounded filesystem reads only; failures degrade to zero values.

package capability

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
)

const numaOnlinePath = "/sys/devices/system/node/online"

func probePlatform(caps *api.Capabilities) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		release := string(uts.Release[:])
		if i := strings.IndexByte(release, 0); i >= 0 {
			release = release[:i]
		}
		caps.KernelMajor, caps.KernelMinor = parseKernelRelease(release)
	}

	// sendmmsg(2) appeared in 3.0.
	if caps.KernelMajor >= 3 {
		caps.Sendmmsg = true
	}
	// io_uring needs 5.1+ and the io_uring build tag.
	if iouringBuilt && kernelAtLeast(caps, 5, 1) {
		caps.IOUring = true
	}
	// AF_XDP needs 4.18+ and the afxdp build tag.
	if afxdpBuilt && kernelAtLeast(caps, 4, 18) {
		caps.AFXDP = true
	}
	// The poll-mode plane only needs to be compiled in; device binding is
	// attempted at initialization.
	caps.DPDK = dpdkBuilt

	caps.NUMANodes = numaNodes(numaOnlinePath)
}

func kernelAtLeast(caps *api.Capabilities, major, minor int) bool {
	return caps.KernelMajor > major ||
		(caps.KernelMajor == major && caps.KernelMinor >= minor)
}

// parseKernelRelease extracts the leading "%d.%d" of a release string such
// as "6.8.0-45-generic".
func parseKernelRelease(release string) (major, minor int) {
	if _, err := fmt.Sscanf(release, "%d.%d", &major, &minor); err != nil {
		return 0, 0
	}
	return major, minor
}

// numaNodes parses the sysfs online-node mask. "A-B" means B-A+1 nodes, a
// bare integer means one node, and a read failure means unknown (zero); the
// caller treats unknown as a single node.
func numaNodes(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	content := strings.TrimSpace(string(raw))
	var a, b int
	if n, _ := fmt.Sscanf(content, "%d-%d", &a, &b); n == 2 {
		return b - a + 1
	}
	if n, _ := fmt.Sscanf(content, "%d", &a); n == 1 {
		return 1
	}
	return 0
}
