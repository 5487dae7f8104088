//go:build dpdk
// +build dpdk

// File: capability/features_dpdk_on.go
// Author: momentics <momentics@gmail.com>

package capability

// dpdkBuilt reports that the userspace poll-mode plane was compiled in.
const dpdkBuilt = true
