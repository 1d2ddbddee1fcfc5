//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package ioengine

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nitro-kv/connio/internal/resolve"
)

// kqueueDescriptor is a non-blocking socket managed by kqueueEngine, the
// native kqueue-backed readiness engine for BSD-family platforms. Unlike
// a poller that watches already-connected net.Conns, this watches a
// socket mid-connect.
type kqueueDescriptor struct {
	fd     int
	local  string
	remote string
}

func (d *kqueueDescriptor) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return unix.Close(fd)
}

func (d *kqueueDescriptor) SetNoDelay(enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(d.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

func (d *kqueueDescriptor) LocalAddr() string  { return d.local }
func (d *kqueueDescriptor) RemoteAddr() string { return d.remote }

type kqueueReg struct {
	d  *kqueueDescriptor
	cb func(writable bool, err error)
}

// kqueueEngine implements ReadinessEngine over kqueue/kevent.
type kqueueEngine struct {
	kq int

	mu   sync.Mutex
	regs map[int]*kqueueReg
}

// NewReadinessEngine returns the BSD/Darwin readiness engine.
func NewReadinessEngine() (ReadinessEngine, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("ioengine: kqueue: %w", err)
	}
	e := &kqueueEngine{kq: fd, regs: make(map[int]*kqueueReg)}
	go e.loop()
	return e, nil
}

func (e *kqueueEngine) CreateDescriptor(family resolve.Family) (ReadinessDescriptor, error) {
	af := unix.AF_INET
	if family == resolve.FamilyIPv6 {
		af = unix.AF_INET6
	}
	fd, err := unix.Socket(af, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &kqueueDescriptor{fd: fd}, nil
}

func (e *kqueueEngine) ConnectNonblocking(rd ReadinessDescriptor, addr resolve.Address) error {
	d := rd.(*kqueueDescriptor)
	sa := toSockaddr(addr)
	err := unix.Connect(d.fd, sa)
	if err == nil {
		d.remote = addr.TCPAddr().String()
	}
	return err
}

func (e *kqueueEngine) SocketError(rd ReadinessDescriptor) error {
	d := rd.(*kqueueDescriptor)
	errno, err := unix.GetsockoptInt(d.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

func (e *kqueueEngine) Watch(rd ReadinessDescriptor, cb func(writable bool, err error)) error {
	d := rd.(*kqueueDescriptor)
	if cb == nil {
		return errors.New("ioengine: nil watch callback")
	}
	change := unix.Kevent_t{
		Ident:  uint64(d.fd),
		Filter: unix.EVFILT_WRITE,
		Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT,
	}
	if _, err := unix.Kevent(e.kq, []unix.Kevent_t{change}, nil, nil); err != nil {
		return err
	}
	e.mu.Lock()
	e.regs[d.fd] = &kqueueReg{d: d, cb: cb}
	e.mu.Unlock()
	return nil
}

func (e *kqueueEngine) CancelWatch(rd ReadinessDescriptor) error {
	d := rd.(*kqueueDescriptor)
	e.mu.Lock()
	_, exists := e.regs[d.fd]
	delete(e.regs, d.fd)
	e.mu.Unlock()
	if !exists {
		return nil
	}
	del := unix.Kevent_t{Ident: uint64(d.fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE}
	_, _ = unix.Kevent(e.kq, []unix.Kevent_t{del}, nil, nil)
	return nil
}

func (e *kqueueEngine) Close(rd ReadinessDescriptor) error {
	d := rd.(*kqueueDescriptor)
	_ = e.CancelWatch(rd)
	return d.Close()
}

func (e *kqueueEngine) loop() {
	events := make([]unix.Kevent_t, 64)
	for {
		n, err := unix.Kevent(e.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n <= 0 {
			continue
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Ident)
			e.mu.Lock()
			reg, ok := e.regs[fd]
			if ok {
				delete(e.regs, fd) // EV_ONESHOT: one notification per Watch
			}
			e.mu.Unlock()
			if !ok {
				continue
			}
			if ev.Flags&unix.EV_ERROR != 0 {
				reg.cb(false, errPollError)
				continue
			}
			reg.cb(true, nil)
		}
	}
}

var errPollError = errors.New("ioengine: descriptor reported an error event")

func toSockaddr(addr resolve.Address) unix.Sockaddr {
	if addr.IsV6() {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		sa.Addr = addr.IP.As16()
		return sa
	}
	sa := &unix.SockaddrInet4{Port: addr.Port}
	sa.Addr = addr.IP.As4()
	return sa
}
