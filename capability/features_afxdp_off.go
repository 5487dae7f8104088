//go:build !afxdp
// +build !afxdp

// File: capability/features_afxdp_off.go
// Author: momentics <momentics@gmail.com>

package capability

const afxdpBuilt = false
