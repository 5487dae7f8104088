// Package backend
// Author: momentics <momentics@gmail.com>
//
// Backend drivers for the pktdrv core. Each driver implements api.Driver
// over one transmit path: portable raw socket, batched sendmmsg, io_uring
// submission queues, AF_XDP kernel bypass, or the userspace poll-mode
// plane. Optional planes register themselves only when their build tag
// (io_uring, afxdp, dpdk) is present.
// See rawsock_unix.go, sendmmsg_linux.go, uring_linux.go, afxdp_linux.go,
// pollmode_linux.go for the individual drivers.
package backend
