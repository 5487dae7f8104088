//go:build unix
// +build unix

// File: internal/backend/errno_unix.go
// Author: momentics <momentics@gmail.com>
//
// Maps platform errnos onto the shared error taxonomy, preserving the
// original errno in the wrapped chain for diagnostics.

package backend

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/pktdrv/api"
)

func mapErrno(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EPERM, unix.EACCES:
			return fmt.Errorf("%w: %s: %v", api.ErrPrivilege, op, err)
		case unix.ENOMEM, unix.ENOBUFS:
			return fmt.Errorf("%w: %s: %v", api.ErrResourceExhausted, op, err)
		case unix.ENODEV, unix.ENXIO:
			return fmt.Errorf("%w: %s: %v", api.ErrNoSuchInterface, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", api.ErrIO, op, err)
}

// wouldBlock reports soft backpressure errnos that end a batch early
// without being an error.
func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.ENOBUFS)
}

// htons converts a port to network byte order for raw sockaddr structs.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
