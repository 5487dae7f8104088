//go:build !dpdk
// +build !dpdk

// File: capability/features_dpdk_off.go
// Author: momentics <momentics@gmail.com>

package capability

const dpdkBuilt = false
