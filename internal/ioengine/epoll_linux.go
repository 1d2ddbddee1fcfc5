//go:build linux
// +build linux

package ioengine

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nitro-kv/connio/internal/resolve"
)

// epollDescriptor is a non-blocking socket managed by epollEngine, the
// native epoll-backed readiness engine for Linux, shaped after this
// package's kqueue engine.
type epollDescriptor struct {
	fd     int
	local  string
	remote string
}

func (d *epollDescriptor) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return unix.Close(fd)
}

func (d *epollDescriptor) SetNoDelay(enable bool) error {
	v := 0
	if enable {
		v = 1
	}
	return unix.SetsockoptInt(d.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
}

func (d *epollDescriptor) LocalAddr() string  { return d.local }
func (d *epollDescriptor) RemoteAddr() string { return d.remote }

type epollReg struct {
	d  *epollDescriptor
	cb func(writable bool, err error)
}

// epollEngine implements ReadinessEngine over epoll_create1/epoll_ctl/
// epoll_wait.
type epollEngine struct {
	epfd int

	mu   sync.Mutex
	regs map[int]*epollReg

	once sync.Once
}

// NewReadinessEngine returns the Linux readiness engine.
func NewReadinessEngine() (ReadinessEngine, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ioengine: epoll_create1: %w", err)
	}
	e := &epollEngine{epfd: fd, regs: make(map[int]*epollReg)}
	go e.loop()
	return e, nil
}

func (e *epollEngine) CreateDescriptor(family resolve.Family) (ReadinessDescriptor, error) {
	af := unix.AF_INET
	if family == resolve.FamilyIPv6 {
		af = unix.AF_INET6
	}
	fd, err := unix.Socket(af, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	return &epollDescriptor{fd: fd}, nil
}

func (e *epollEngine) ConnectNonblocking(rd ReadinessDescriptor, addr resolve.Address) error {
	d := rd.(*epollDescriptor)
	sa := toSockaddr(addr)
	err := unix.Connect(d.fd, sa)
	if err == nil {
		d.remote = addr.TCPAddr().String()
	}
	return err
}

func (e *epollEngine) SocketError(rd ReadinessDescriptor) error {
	d := rd.(*epollDescriptor)
	errno, err := unix.GetsockoptInt(d.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

func (e *epollEngine) Watch(rd ReadinessDescriptor, cb func(writable bool, err error)) error {
	d := rd.(*epollDescriptor)
	if cb == nil {
		return errors.New("ioengine: nil watch callback")
	}
	ev := unix.EpollEvent{Events: unix.EPOLLOUT | unix.EPOLLONESHOT, Fd: int32(d.fd)}
	e.mu.Lock()
	_, exists := e.regs[d.fd]
	e.mu.Unlock()
	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(e.epfd, op, d.fd, &ev); err != nil {
		return err
	}
	e.mu.Lock()
	e.regs[d.fd] = &epollReg{d: d, cb: cb}
	e.mu.Unlock()
	return nil
}

func (e *epollEngine) CancelWatch(rd ReadinessDescriptor) error {
	d := rd.(*epollDescriptor)
	e.mu.Lock()
	_, exists := e.regs[d.fd]
	delete(e.regs, d.fd)
	e.mu.Unlock()
	if !exists {
		return nil
	}
	_ = unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, d.fd, nil)
	return nil
}

func (e *epollEngine) Close(rd ReadinessDescriptor) error {
	d := rd.(*epollDescriptor)
	_ = e.CancelWatch(rd)
	return d.Close()
}

func (e *epollEngine) loop() {
	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(e.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			e.mu.Lock()
			reg, ok := e.regs[fd]
			if ok {
				delete(e.regs, fd) // EPOLLONESHOT: one notification per Watch
			}
			e.mu.Unlock()
			if !ok {
				continue
			}
			if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
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
