//go:build !io_uring
// +build !io_uring

// File: capability/features_uring_off.go
// Author: momentics <momentics@gmail.com>

package capability

const iouringBuilt = false
