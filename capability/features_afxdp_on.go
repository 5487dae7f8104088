//go:build afxdp
// +build afxdp

// File: capability/features_afxdp_on.go
// Author: momentics <momentics@gmail.com>

package capability

// afxdpBuilt reports that the AF_XDP plane was compiled in.
const afxdpBuilt = true
