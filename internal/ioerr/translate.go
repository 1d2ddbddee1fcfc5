// Package ioerr classifies raw OS errors from non-blocking connect syscalls
// into the small status taxonomy the connect state machine branches on, and
// translates them into the library-level error kinds surfaced to callers.
package ioerr

import (
	"fmt"
	"runtime"
)

// Status is the outcome of a single non-blocking connect(2)/ConnectEx call,
// as classified from the raw OS error it returned.
type Status int

const (
	// Intr means the call was interrupted by a signal; the caller retries
	// the same address without advancing the cursor.
	Intr Status = iota
	// Connected means the socket is already connected (either connect
	// returned success directly, or a later getsockopt(SO_ERROR) found no
	// error).
	Connected
	// Busy means the connect is in progress and the caller must wait for
	// writability (readiness model) or a completion callback.
	Busy
	// Invalid means the OS rejected the call arguments; retried exactly
	// once on the same address before being treated as Fail.
	Invalid
	// Fail is any other failure; the caller closes the descriptor and
	// advances to the next address.
	Fail
)

func (s Status) String() string {
	switch s {
	case Intr:
		return "INTR"
	case Connected:
		return "CONNECTED"
	case Busy:
		return "BUSY"
	case Invalid:
		return "EINVAL"
	case Fail:
		return "EFAIL"
	default:
		return "UNKNOWN"
	}
}

// Kind is the fixed set of library-level error kinds surfaced to the user
// callback alongside the raw OS errno.
type Kind string

const (
	KindUnknownHost   Kind = "UNKNOWN_HOST"
	KindConnectError  Kind = "CONNECT_ERROR"
	KindTimedOut      Kind = "ETIMEDOUT"
	KindNetworkError  Kind = "NETWORK_ERROR"
	KindInternalError Kind = "INTERNAL_ERROR"
)

// LibError is the standardized error shape surfaced by this module: a kind,
// a human message, free-form context, the calling function (for log
// correlation), and the originating OS error so callers can log or classify
// further (spec requirement: syserr is always preserved).
type LibError struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
	Caller  string
	Sys     error
}

// Error implements the error interface.
func (e *LibError) Error() string {
	if e.Sys != nil {
		return fmt.Sprintf("[%s] %s (caller: %s): %v", e.Kind, e.Message, e.Caller, e.Sys)
	}
	return fmt.Sprintf("[%s] %s (caller: %s)", e.Kind, e.Message, e.Caller)
}

// Unwrap exposes the originating OS error for errors.Is/errors.As.
func (e *LibError) Unwrap() error { return e.Sys }

// New builds a LibError, capturing the immediate caller for log
// correlation.
func New(kind Kind, message string, sys error, context map[string]interface{}) *LibError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}
	return &LibError{Kind: kind, Message: message, Context: context, Caller: caller, Sys: sys}
}

// UnknownHost builds the error delivered when name resolution fails.
func UnknownHost(host, port string, sys error) *LibError {
	return New(KindUnknownHost, fmt.Sprintf("could not resolve %s:%s", host, port), sys,
		map[string]interface{}{"host": host, "port": port})
}

// TimedOut builds the error delivered when the attempt's timer fires while
// still pending.
func TimedOut(host, port string) *LibError {
	return New(KindTimedOut, fmt.Sprintf("connect to %s:%s timed out", host, port), nil,
		map[string]interface{}{"host": host, "port": port})
}

// ToLibraryError translates a raw OS error observed on the final, exhausted
// connect attempt into either NETWORK_ERROR (a recognized unreachable/refused
// subclass) or the generic CONNECT_ERROR.
func ToLibraryError(host, port string, sys error) *LibError {
	ctx := map[string]interface{}{"host": host, "port": port}
	if isNetworkUnreachable(sys) {
		return New(KindNetworkError, fmt.Sprintf("network error connecting to %s:%s", host, port), sys, ctx)
	}
	return New(KindConnectError, fmt.Sprintf("could not connect to %s:%s", host, port), sys, ctx)
}
