//go:build linux || darwin || freebsd || netbsd || openbsd
// +build linux darwin freebsd netbsd openbsd

package ioerr

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Classify maps a raw errno from connect(2) into the small status taxonomy
// the state machine branches on.
func Classify(sys error) Status {
	if sys == nil {
		return Connected
	}
	var errno unix.Errno
	if !errors.As(sys, &errno) {
		return Fail
	}
	switch errno {
	case unix.EINTR:
		return Intr
	case unix.EISCONN:
		return Connected
	case unix.EINPROGRESS, unix.EALREADY, unix.EAGAIN:
		return Busy
	case unix.EINVAL:
		return Invalid
	default:
		return Fail
	}
}

// isNetworkUnreachable recognizes the errno subclass that should surface as
// NETWORK_ERROR rather than the generic CONNECT_ERROR.
func isNetworkUnreachable(sys error) bool {
	var errno unix.Errno
	if !errors.As(sys, &errno) {
		return false
	}
	switch errno {
	case unix.ENETUNREACH, unix.EHOSTUNREACH, unix.ECONNREFUSED, unix.ENETDOWN, unix.EHOSTDOWN:
		return true
	default:
		return false
	}
}
