package ioengine

import (
	"context"
	"net"
	"sync"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/nitro-kv/connio/internal/resolve"
)

// goroutineCompletionDescriptor is the completion-model descriptor: a
// connect submitted on a dedicated goroutine, whose result is posted back
// through a callback rather than observed via a readiness watch.
//
// This combines two patterns: a goroutine spawned per operation for
// portability, and bookkeeping of in-flight operations kept alive until
// their completion fires (mirrored here as the pending map in
// GoroutineCompletionEngine, keyed by a token instead of a pointer to an
// OS-level overlapped-I/O struct).
type goroutineCompletionDescriptor struct {
	id     string
	mu     sync.Mutex
	family resolve.Family
	cancel context.CancelFunc
	conn   net.Conn
}

func (d *goroutineCompletionDescriptor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

func (d *goroutineCompletionDescriptor) SetNoDelay(enable bool) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(enable)
	}
	return nil
}

func (d *goroutineCompletionDescriptor) LocalAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.LocalAddr().String()
}

func (d *goroutineCompletionDescriptor) RemoteAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.RemoteAddr().String()
}

// GoroutineCompletionEngine is the single, cross-platform CompletionEngine
// implementation: every submitted connect runs on its own goroutine and
// reports back via the supplied callback exactly once.
type GoroutineCompletionEngine struct {
	mu      sync.Mutex
	pending map[string]*goroutineCompletionDescriptor
}

// NewCompletionEngine returns a GoroutineCompletionEngine.
func NewCompletionEngine() *GoroutineCompletionEngine {
	return &GoroutineCompletionEngine{pending: make(map[string]*goroutineCompletionDescriptor)}
}

func (e *GoroutineCompletionEngine) CreateDescriptor(family resolve.Family) (CompletionDescriptor, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		id = ""
	}
	return &goroutineCompletionDescriptor{id: id, family: family}, nil
}

// ConnectSubmit always reports submitted=true: the connect runs on a
// goroutine and cb fires exactly once with the final result. The pending
// map keeps the descriptor reachable for the lifetime of the in-flight
// operation.
func (e *GoroutineCompletionEngine) ConnectSubmit(cd CompletionDescriptor, addr resolve.Address, cb func(err error)) (bool, error) {
	d := cd.(*goroutineCompletionDescriptor)
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	e.mu.Lock()
	e.pending[d.id] = d
	e.mu.Unlock()

	go func() {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", addr.TCPAddr().String())
		if err == nil {
			d.mu.Lock()
			d.conn = conn
			d.mu.Unlock()
		}
		e.mu.Lock()
		delete(e.pending, d.id)
		e.mu.Unlock()
		cb(err)
	}()
	return true, nil
}

func (e *GoroutineCompletionEngine) Close(cd CompletionDescriptor) error {
	return cd.(*goroutineCompletionDescriptor).Close()
}
