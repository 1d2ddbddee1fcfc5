package ioerr

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Status
	}{
		{"nil is connected", nil, Connected},
		{"EINTR retries", unix.EINTR, Intr},
		{"EISCONN is connected", unix.EISCONN, Connected},
		{"EINPROGRESS is busy", unix.EINPROGRESS, Busy},
		{"EALREADY is busy", unix.EALREADY, Busy},
		{"EINVAL is invalid", unix.EINVAL, Invalid},
		{"ECONNREFUSED is fail", unix.ECONNREFUSED, Fail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestToLibraryError(t *testing.T) {
	err := ToLibraryError("db.example.com", "11210", unix.ECONNREFUSED)
	if err.Kind != KindNetworkError {
		t.Fatalf("expected NETWORK_ERROR for ECONNREFUSED, got %s", err.Kind)
	}
	if err.Unwrap() != unix.ECONNREFUSED {
		t.Fatalf("expected wrapped syserr to be preserved")
	}

	generic := ToLibraryError("db.example.com", "11210", unix.ENOMEM)
	if generic.Kind != KindConnectError {
		t.Fatalf("expected CONNECT_ERROR for a non-network errno, got %s", generic.Kind)
	}
}
