// Package ioengine provides the two pluggable I/O backends the connect
// state machine drives: a readiness variant (create a raw descriptor,
// watch for writability, receive an edge/level callback) and a completion
// variant (submit a connect, receive a completion callback with status).
//
// The two flavors are modeled as a sum type rather than one virtualized
// interface, because their suspension points differ: the readiness flavor
// suspends at watch registration, the completion flavor suspends at
// submission. Collapsing both into one shape would hide that difference
// from callers that need to reason about it (the attempt's two drivers).
package ioengine

import (
	"github.com/nitro-kv/connio/internal/dispatch"
	"github.com/nitro-kv/connio/internal/iosocket"
	"github.com/nitro-kv/connio/internal/resolve"
)

// ReadinessDescriptor is a raw, non-blocking socket descriptor managed by a
// ReadinessEngine.
type ReadinessDescriptor interface {
	iosocket.Descriptor
	iosocket.NoDelaySetter
	iosocket.AddrReporter
}

// ReadinessEngine is the readiness I/O flavor: create_descriptor,
// connect_nonblocking, watch/cancel_watch, close, current-errno.
type ReadinessEngine interface {
	// CreateDescriptor allocates a non-blocking socket whose family matches
	// the given candidate family.
	CreateDescriptor(family resolve.Family) (ReadinessDescriptor, error)
	// ConnectNonblocking issues a single non-blocking connect(2)/ConnectEx
	// call and returns the raw OS error (nil on immediate success).
	ConnectNonblocking(d ReadinessDescriptor, addr resolve.Address) error
	// SocketError performs a getsockopt(SO_ERROR)-equivalent read of the
	// descriptor's pending error after a writability/error event fires.
	SocketError(d ReadinessDescriptor) error
	// Watch registers interest in writability; cb is invoked at most once
	// per Watch call, with writable=false and a non-nil err if the
	// descriptor instead reported an error condition.
	Watch(d ReadinessDescriptor, cb func(writable bool, err error)) error
	// CancelWatch cancels a pending Watch registration. Safe to call even
	// if no watch is active.
	CancelWatch(d ReadinessDescriptor) error
	// Close releases the descriptor.
	Close(d ReadinessDescriptor) error
}

// CompletionDescriptor is a completion-model descriptor managed by a
// CompletionEngine.
type CompletionDescriptor interface {
	iosocket.Descriptor
	iosocket.NoDelaySetter
	iosocket.AddrReporter
}

// CompletionEngine is the completion I/O flavor: create_descriptor,
// connect_submit, close.
type CompletionEngine interface {
	// CreateDescriptor allocates a descriptor object whose family matches
	// the given candidate family.
	CreateDescriptor(family resolve.Family) (CompletionDescriptor, error)
	// ConnectSubmit submits a connect operation. If it returns
	// submitted=true, cb will be invoked exactly once, later, with the
	// final result (nil error on success). If submitted=false, the
	// operation failed synchronously and err carries the raw OS error to
	// classify.
	ConnectSubmit(d CompletionDescriptor, addr resolve.Address, cb func(err error)) (submitted bool, err error)
	// Close releases the descriptor.
	Close(d CompletionDescriptor) error
}

// Model tags which flavor a Table implements, so the attempt can dispatch
// to the correct driver without a type switch scattered through its logic.
type Model int

const (
	ModelReadiness Model = iota
	ModelCompletion
)

// Table is the tagged union the Public Connect API consumes: exactly one
// of Readiness or Completion is non-nil, matching Model. Loop is the single
// dispatch goroutine every attempt built against this Table posts its state
// transitions through, so watch/completion/timer callbacks arriving on
// different engine goroutines are still serialized onto one thread, giving
// callers a single-threaded cooperative scheduling model.
type Table struct {
	Model      Model
	Readiness  ReadinessEngine
	Completion CompletionEngine
	Loop       *dispatch.Loop
}

// NewReadinessTable wraps a ReadinessEngine in a Table with a fresh
// dispatch Loop.
func NewReadinessTable(eng ReadinessEngine) *Table {
	return &Table{Model: ModelReadiness, Readiness: eng, Loop: dispatch.New()}
}

// NewCompletionTable wraps a CompletionEngine in a Table with a fresh
// dispatch Loop.
func NewCompletionTable(eng CompletionEngine) *Table {
	return &Table{Model: ModelCompletion, Completion: eng, Loop: dispatch.New()}
}
