//go:build io_uring
// +build io_uring

// File: capability/features_uring_on.go
// Author: momentics <momentics@gmail.com>

package capability

// iouringBuilt reports that the io_uring plane was compiled in.
const iouringBuilt = true
