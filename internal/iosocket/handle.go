// Package iosocket implements the reference-counted socket handle shared
// between a connect attempt and, once successful, the caller that receives
// it.
package iosocket

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-uuid"
)

// Descriptor is the minimal capability a Socket Handle owns: either a raw
// non-blocking file descriptor (readiness model) or a completion
// descriptor (completion model). Both engines' descriptor types satisfy
// this.
type Descriptor interface {
	Close() error
}

// NoDelaySetter is implemented by descriptors that can toggle Nagle's
// algorithm.
type NoDelaySetter interface {
	SetNoDelay(enable bool) error
}

// AddrReporter is implemented by descriptors that can report their local
// and remote socket names once connected.
type AddrReporter interface {
	LocalAddr() string
	RemoteAddr() string
}

// ProtocolContext is an out-of-scope protocol hook attached to a socket
// (e.g. a higher-level framing or auth layer). The connect core only
// guarantees LIFO draining at shutdown.
type ProtocolContext interface {
	Close() error
}

// Handle is the reference-counted socket handle: it owns exactly one
// Descriptor, the endpoint it was opened against, last known local/remote
// address strings, and a LIFO stack of attached protocol contexts.
//
// A Handle is created with a reference count of one, owned by the attempt
// that created it. On successful connect, ownership transfers to the user
// callback, which becomes responsible for the final Unref. On failure, the
// attempt unrefs it during its own teardown.
type Handle struct {
	ID   string
	Host string
	Port string

	mu         sync.Mutex
	desc       Descriptor
	local      string
	remote     string
	refs       int32
	downed     int32 // atomic: shutdown has run
	protocols  []ProtocolContext
}

// New creates a Handle with refcount one, owning no descriptor yet.
func New(host, port string) *Handle {
	id, err := uuid.GenerateUUID()
	if err != nil {
		id = fmt.Sprintf("sock-%p", &host)
	}
	return &Handle{ID: id, Host: host, Port: port, refs: 1}
}

// SetDescriptor binds (or rebinds) the owned descriptor. It does not close
// a previously bound descriptor; callers close the old one themselves
// before advancing to a fresh address, as the attempt's
// advanceReadinessCursor/advanceCompletionCursor do.
func (h *Handle) SetDescriptor(d Descriptor) {
	h.mu.Lock()
	h.desc = d
	h.mu.Unlock()
}

// Descriptor returns the currently bound descriptor, or nil.
func (h *Handle) Descriptor() Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.desc
}

// Ref increments the reference count. Used to bridge the window between a
// completion submission and its completion callback.
func (h *Handle) Ref() { atomic.AddInt32(&h.refs, 1) }

// Unref decrements the reference count; when it reaches zero, Shutdown
// runs (idempotently) and owned resources are released.
func (h *Handle) Unref() {
	if atomic.AddInt32(&h.refs, -1) == 0 {
		h.Shutdown()
	}
}

// AttachProtocol pushes a protocol context onto the handle's stack.
func (h *Handle) AttachProtocol(ctx ProtocolContext) {
	h.mu.Lock()
	h.protocols = append(h.protocols, ctx)
	h.mu.Unlock()
}

// DetachProtocol pops and closes the most recently attached protocol
// context, if any.
func (h *Handle) DetachProtocol() {
	h.mu.Lock()
	n := len(h.protocols)
	if n == 0 {
		h.mu.Unlock()
		return
	}
	ctx := h.protocols[n-1]
	h.protocols = h.protocols[:n-1]
	h.mu.Unlock()
	_ = ctx.Close()
}

// Shutdown detaches all protocol contexts in LIFO order, closes the
// descriptor, and marks it invalid. Idempotent.
func (h *Handle) Shutdown() {
	if !atomic.CompareAndSwapInt32(&h.downed, 0, 1) {
		return
	}
	for {
		h.mu.Lock()
		n := len(h.protocols)
		if n == 0 {
			h.mu.Unlock()
			break
		}
		ctx := h.protocols[n-1]
		h.protocols = h.protocols[:n-1]
		h.mu.Unlock()
		_ = ctx.Close()
	}
	h.mu.Lock()
	d := h.desc
	h.desc = nil
	h.mu.Unlock()
	if d != nil {
		_ = d.Close()
	}
}

// LoadSocknames fills in local/remote address strings; called once after a
// successful connect.
func (h *Handle) LoadSocknames() {
	h.mu.Lock()
	d := h.desc
	h.mu.Unlock()
	if ar, ok := d.(AddrReporter); ok {
		h.mu.Lock()
		h.local = ar.LocalAddr()
		h.remote = ar.RemoteAddr()
		h.mu.Unlock()
	}
}

// LocalAddr returns the last loaded local address string, if any.
func (h *Handle) LocalAddr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.local
}

// RemoteAddr returns the last loaded remote address string, if any.
func (h *Handle) RemoteAddr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remote
}

// SetNoDelay disables (or re-enables) Nagle's algorithm on the owned
// descriptor, if it supports the option. Failure is reported but never
// fatal to the connect attempt — it is logged, not treated as an error.
func (h *Handle) SetNoDelay(enable bool) error {
	h.mu.Lock()
	d := h.desc
	h.mu.Unlock()
	if nd, ok := d.(NoDelaySetter); ok {
		return nd.SetNoDelay(enable)
	}
	return nil
}
