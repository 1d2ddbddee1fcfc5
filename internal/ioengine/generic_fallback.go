//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd

package ioengine

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/nitro-kv/connio/internal/resolve"
)

// genericDescriptor is the portability-first readiness descriptor for
// platforms without a native epoll/kqueue engine (windows and others).
// Rather than a true non-blocking socket, a connect is run on a dedicated
// goroutine and its outcome is observed without blocking the caller.
type genericDescriptor struct {
	mu     sync.Mutex
	family resolve.Family
	cancel context.CancelFunc
	conn   net.Conn
	err    error
	done   chan struct{}
}

func (d *genericDescriptor) Close() error {
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

func (d *genericDescriptor) SetNoDelay(enable bool) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(enable)
	}
	return nil
}

func (d *genericDescriptor) LocalAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.LocalAddr().String()
}

func (d *genericDescriptor) RemoteAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ""
	}
	return d.conn.RemoteAddr().String()
}

// genericEngine implements ReadinessEngine by wrapping net.Dialer in a
// goroutine per candidate, reported through a short adaptive poll loop.
// It sacrifices a true non-blocking connect(2) for portability, trading
// an OS readiness notification for polling on platforms with no native
// epoll/kqueue engine.
type genericEngine struct{}

// NewReadinessEngine returns the portable fallback readiness engine.
func NewReadinessEngine() (ReadinessEngine, error) {
	return &genericEngine{}, nil
}

func (e *genericEngine) CreateDescriptor(family resolve.Family) (ReadinessDescriptor, error) {
	return &genericDescriptor{family: family}, nil
}

// ConnectNonblocking starts the dial on first call. Subsequent calls
// (after a writability callback fires) observe the outcome: connected
// (nil), still pending (a Busy-classified sentinel), or failed (the real
// dial error).
func (e *genericEngine) ConnectNonblocking(rd ReadinessDescriptor, addr resolve.Address) error {
	d := rd.(*genericDescriptor)
	d.mu.Lock()
	if d.done == nil {
		d.done = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		d.mu.Unlock()
		go func() {
			var dialer net.Dialer
			conn, err := dialer.DialContext(ctx, "tcp", addr.TCPAddr().String())
			d.mu.Lock()
			d.conn, d.err = conn, err
			d.mu.Unlock()
			close(d.done)
		}()
		return syscall.EINPROGRESS
	}
	select {
	case <-d.done:
		err := d.err
		d.mu.Unlock()
		return err
	default:
		d.mu.Unlock()
		return syscall.EINPROGRESS
	}
}

// SocketError re-observes the dial outcome after a writability/error
// event; equivalent to getsockopt(SO_ERROR) on a real socket.
func (e *genericEngine) SocketError(rd ReadinessDescriptor) error {
	d := rd.(*genericDescriptor)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Watch polls for dial completion at a short, adaptive interval (growing
// on each miss, capped at maxInterval) instead of a true OS readiness
// notification.
func (e *genericEngine) Watch(rd ReadinessDescriptor, cb func(writable bool, err error)) error {
	d := rd.(*genericDescriptor)
	go func() {
		interval := 2 * time.Millisecond
		const maxInterval = 25 * time.Millisecond
		for {
			d.mu.Lock()
			done := d.done
			d.mu.Unlock()
			if done == nil {
				cb(false, errPollError)
				return
			}
			select {
			case <-done:
				d.mu.Lock()
				err := d.err
				d.mu.Unlock()
				cb(err == nil, err)
				return
			case <-time.After(interval):
				if interval < maxInterval {
					interval *= 2
				}
			}
		}
	}()
	return nil
}

func (e *genericEngine) CancelWatch(rd ReadinessDescriptor) error { return nil }

func (e *genericEngine) Close(rd ReadinessDescriptor) error {
	return rd.(*genericDescriptor).Close()
}

var errPollError = syscall.ECONNABORTED
