// Package connio is the asynchronous connection establishment core: given a
// destination host and a timeout, it drives a name-resolved,
// address-list-iterating, non-blocking TCP connect attempt to completion,
// producing either a ready socket or a categorized failure. It is
// abstracted over two I/O models — readiness-based event demultiplexing and
// completion-based async I/O — behind one state machine.
package connio

import (
	"context"
	"sync"
	"time"

	"github.com/nitro-kv/connio/internal/config"
	"github.com/nitro-kv/connio/internal/ioengine"
	"github.com/nitro-kv/connio/internal/ioerr"
	"github.com/nitro-kv/connio/internal/iosocket"
	"github.com/nitro-kv/connio/internal/iotimer"
	"github.com/nitro-kv/connio/internal/logging"
	"github.com/nitro-kv/connio/internal/resolve"
)

// State is the connect attempt's lifecycle state. Transitions only occur
// from Pending; once an attempt reaches a terminal state, further signals
// are idempotently ignored.
type State int

const (
	StatePending State = iota
	StateCancelled
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateCancelled:
		return "CANCELLED"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Callback is the user-supplied completion handler. On library err ==
// nil, sock is a fully initialized handle transferred to the callback (the
// callback becomes responsible for the final Unref); on any other outcome
// sock is nil and no handle is transferred. sysErr is always the last
// observed OS error, regardless of category, so callers can log or
// classify further.
type Callback func(sock *iosocket.Handle, arg interface{}, libErr *ioerr.LibError, sysErr error)

// readinessEvent tags why the readiness driver was (re-)entered.
type readinessEvent int

const (
	evNone readinessEvent = iota
	evError
	evWritable
)

// Attempt is the connect state machine: it owns the socket, the address
// cursor, the timer, the user callback, and the current state. It is also
// the AttemptHandle returned from the public Connect entry points.
type Attempt struct {
	table    *ioengine.Table
	settings *config.Settings
	vals     config.Values
	log      *logging.Log
	host     string
	port     string
	timeout  time.Duration

	cb  Callback
	arg interface{}

	mu            sync.Mutex
	state         State
	lastErr       *ioerr.LibError
	sysErr        error
	watchActive   bool
	inUserHandler bool
	handled       bool

	sock  *iosocket.Handle
	addrs *resolve.List
	timer *iotimer.Timer

	retryOnce bool
	rfd       ioengine.ReadinessDescriptor
	cfd       ioengine.CompletionDescriptor
}

// State returns the attempt's current lifecycle state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// newAttempt builds the Attempt, binds its timer, and synchronously
// resolves host:port. On a resolve failure the Attempt is returned in
// StateError with a non-nil error and its timer left unarmed — callers
// decide whether and when to dispatch the deferred failure callback (the
// host-list wrapper uses this to try the next host without ever ticking a
// timer for an endpoint that never started). On success the Attempt's
// timer is armed and its first driver turn is posted to the table's
// dispatch loop; the returned error is nil.
func newAttempt(table *ioengine.Table, settings *config.Settings, resolver resolve.Resolver, host, port string, timeout time.Duration, cb Callback, arg interface{}) (*Attempt, error) {
	sock := iosocket.New(host, port)
	a := &Attempt{
		table:    table,
		settings: settings,
		log:      logging.New(settings.Logger(), host, port, sock.ID),
		host:     host,
		port:     port,
		timeout:  timeout,
		cb:       cb,
		arg:      arg,
		sock:     sock,
	}
	a.timer = iotimer.New(func() { a.table.Loop.Post(a.handler) })

	vals := settings.Snapshot()
	a.vals = vals
	list, err := resolver.Resolve(context.Background(), host, port, vals.IPv6)
	if err != nil {
		a.log.DNSFailure(err)
		a.sysErr = err
		a.state = StateError
		a.lastErr = ioerr.UnknownHost(host, port, err)
		return a, err
	}

	a.addrs = list
	a.log.AttemptStart(timeout)
	a.timer.Arm(timeout)
	a.table.Loop.Post(a.drive)
	return a, nil
}

// Cancel aborts the attempt. It is always safe to call from outside the
// user callback; the callback will not fire for a cancelled attempt. A
// re-entrant call from inside the running user callback is a no-op (the
// callback is already running and will destroy the attempt itself).
//
// The actual state transition and teardown run on the owning IOTable's
// dispatch loop so Cancel never races a concurrently executing watch,
// completion, or timer callback; Cancel blocks until that has happened,
// except when it short-circuits on the in-callback case above (avoiding a
// self-deadlock when Cancel is invoked from inside the callback that the
// dispatch loop is currently running).
func (a *Attempt) Cancel() {
	a.mu.Lock()
	if a.inUserHandler {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	done := make(chan struct{})
	a.table.Loop.Post(func() {
		defer close(done)
		a.mu.Lock()
		if a.inUserHandler || a.state != StatePending {
			a.mu.Unlock()
			return
		}
		a.state = StateCancelled
		a.mu.Unlock()
		a.handler()
	})
	<-done
}

// drive dispatches to the flavor-specific driver for the first address,
// and is also what's reposted whenever the driver needs another dispatch
// turn outside of a direct I/O callback.
func (a *Attempt) drive() {
	a.mu.Lock()
	pending := a.state == StatePending
	a.mu.Unlock()
	if !pending {
		return
	}
	switch a.table.Model {
	case ioengine.ModelReadiness:
		a.readinessDrive(evNone)
	case ioengine.ModelCompletion:
		a.completionDrive()
	}
}

// --- Readiness driver -------------------------------------------------

func (a *Attempt) ensureReadinessDescriptor() bool {
	if a.rfd != nil {
		return true
	}
	for !a.addrs.Exhausted() {
		cur, _ := a.addrs.Current()
		fd, err := a.table.Readiness.CreateDescriptor(cur.Family)
		if err != nil {
			a.sysErr = err
			a.addrs.Advance()
			continue
		}
		a.rfd = fd
		a.sock.SetDescriptor(fd)
		a.retryOnce = false
		a.log.DescriptorCreated(familyName(cur.Family))
		return true
	}
	return false
}

func (a *Attempt) closeCurrentReadiness() {
	if a.rfd == nil {
		return
	}
	_ = a.table.Readiness.Close(a.rfd)
	a.rfd = nil
	a.sock.SetDescriptor(nil)
}

func (a *Attempt) advanceReadinessCursor() {
	a.closeCurrentReadiness()
	a.addrs.Advance()
}

func (a *Attempt) unwatchReadiness() {
	a.mu.Lock()
	active := a.watchActive
	a.watchActive = false
	a.mu.Unlock()
	if active && a.rfd != nil {
		_ = a.table.Readiness.CancelWatch(a.rfd)
	}
}

// readinessDrive is the readiness-model connect driver: two nested loops
// over address advance and connect retry, entered both on the first call
// and on every writability/error callback.
func (a *Attempt) readinessDrive(ev readinessEvent) {
addressLoop:
	for {
		if !a.ensureReadinessDescriptor() {
			a.notifyError(ioerr.KindConnectError)
			return
		}

		if ev == evError {
			ev = evNone
			a.sysErr = a.table.Readiness.SocketError(a.rfd)
			a.log.ErrorEvent(a.sysErr)
			a.advanceReadinessCursor()
			continue addressLoop
		}
		ev = evNone

		cur, _ := a.addrs.Current()
	connectLoop:
		for {
			err := a.table.Readiness.ConnectNonblocking(a.rfd, cur)
			a.sysErr = err
			switch ioerr.Classify(err) {
			case ioerr.Intr:
				continue connectLoop
			case ioerr.Connected:
				a.unwatchReadiness()
				a.notifySuccess()
				return
			case ioerr.Busy:
				if werr := a.table.Readiness.Watch(a.rfd, a.onWritable); werr != nil {
					a.sysErr = werr
					a.advanceReadinessCursor()
					continue addressLoop
				}
				a.mu.Lock()
				a.watchActive = true
				a.mu.Unlock()
				a.log.AsyncWait()
				return
			case ioerr.Invalid:
				if !a.retryOnce {
					a.retryOnce = true
					continue connectLoop
				}
				fallthrough
			default: // Fail
				a.advanceReadinessCursor()
				continue addressLoop
			}
		}
	}
}

// onWritable is the watch callback bound to the current readiness
// descriptor. It is posted through the table's dispatch loop so it is
// serialized with every other state transition, regardless of which
// goroutine the underlying engine invokes it from.
func (a *Attempt) onWritable(writable bool, err error) {
	a.table.Loop.Post(func() {
		a.mu.Lock()
		pending := a.state == StatePending
		a.watchActive = false
		a.mu.Unlock()
		if !pending {
			return
		}
		if !writable {
			a.readinessDrive(evError)
			return
		}
		a.readinessDrive(evWritable)
	})
}

// --- Completion driver --------------------------------------------------

func (a *Attempt) ensureCompletionDescriptor() bool {
	if a.cfd != nil {
		return true
	}
	for !a.addrs.Exhausted() {
		cur, _ := a.addrs.Current()
		fd, err := a.table.Completion.CreateDescriptor(cur.Family)
		if err != nil {
			a.sysErr = err
			a.addrs.Advance()
			continue
		}
		a.cfd = fd
		a.sock.SetDescriptor(fd)
		a.retryOnce = false
		a.log.DescriptorCreated(familyName(cur.Family))
		return true
	}
	return false
}

func (a *Attempt) closeCurrentCompletion() {
	if a.cfd == nil {
		return
	}
	_ = a.table.Completion.Close(a.cfd)
	a.cfd = nil
	a.sock.SetDescriptor(nil)
}

func (a *Attempt) advanceCompletionCursor() {
	a.closeCurrentCompletion()
	a.addrs.Advance()
}

// completionDrive is the completion-model connect driver.
func (a *Attempt) completionDrive() {
addressLoop:
	for {
		if !a.ensureCompletionDescriptor() {
			a.notifyError(ioerr.KindConnectError)
			return
		}
		cur, _ := a.addrs.Current()
	issueLoop:
		for {
			submitted, err := a.table.Completion.ConnectSubmit(a.cfd, cur, a.onCompletion)
			if submitted {
				a.sock.Ref()
				a.log.AsyncWait()
				return
			}
			a.sysErr = err
			switch ioerr.Classify(err) {
			case ioerr.Intr:
				continue issueLoop
			case ioerr.Connected:
				a.notifySuccess()
				return
			case ioerr.Busy:
				// Submission raced with completion; await the callback
				// rather than resubmitting.
				return
			case ioerr.Invalid:
				if !a.retryOnce {
					a.retryOnce = true
					continue issueLoop
				}
				fallthrough
			default: // Fail
				a.advanceCompletionCursor()
				continue addressLoop
			}
		}
	}
}

// onCompletion is the completion callback bound at submission time. The
// bridging ref acquired at submission is released exactly once here,
// regardless of outcome, before any further driver logic runs.
func (a *Attempt) onCompletion(err error) {
	a.table.Loop.Post(func() {
		a.sock.Unref()
		a.mu.Lock()
		pending := a.state == StatePending
		a.mu.Unlock()
		if !pending {
			return
		}
		a.sysErr = err
		switch ioerr.Classify(err) {
		case ioerr.Connected:
			a.notifySuccess()
		case ioerr.Intr:
			a.resubmitCompletion()
		case ioerr.Invalid:
			if !a.retryOnce {
				a.retryOnce = true
				a.resubmitCompletion()
				return
			}
			a.advanceCompletionCursor()
			a.completionDrive()
		default:
			a.advanceCompletionCursor()
			a.completionDrive()
		}
	})
}

// resubmitCompletion re-issues ConnectSubmit on the same, already-created
// descriptor: the INTR and single-retry-EINVAL paths of the completion
// driver retry without closing the descriptor first.
func (a *Attempt) resubmitCompletion() {
	cur, ok := a.addrs.Current()
	if !ok {
		a.notifyError(ioerr.KindConnectError)
		return
	}
	submitted, err := a.table.Completion.ConnectSubmit(a.cfd, cur, a.onCompletion)
	if submitted {
		a.sock.Ref()
		return
	}
	a.sysErr = err
	switch ioerr.Classify(err) {
	case ioerr.Connected:
		a.notifySuccess()
	case ioerr.Intr:
		a.resubmitCompletion()
	default:
		a.advanceCompletionCursor()
		a.completionDrive()
	}
}

// --- Terminal transitions & teardown ------------------------------------

func (a *Attempt) notifySuccess() {
	a.stateSignal(StateConnected, nil)
}

func (a *Attempt) notifyError(kind ioerr.Kind) {
	var lib *ioerr.LibError
	if kind == ioerr.KindUnknownHost {
		lib = ioerr.UnknownHost(a.host, a.port, a.sysErr)
	} else {
		lib = ioerr.New(kind, "connect failed", a.sysErr, map[string]interface{}{"host": a.host, "port": a.port})
	}
	a.stateSignal(StateError, lib)
}

// stateSignal is the sole terminal-transition entry point reachable from
// the drive loops: a no-op unless state is still Pending, otherwise it
// records last_error, updates state, and defers the handler invocation to
// the dispatch loop's next turn via the timer's Signal role.
func (a *Attempt) stateSignal(state State, libErr *ioerr.LibError) {
	a.mu.Lock()
	if a.state != StatePending {
		a.mu.Unlock()
		return
	}
	if a.lastErr == nil {
		a.lastErr = libErr
	}
	a.state = state
	a.mu.Unlock()
	a.timer.Signal()
}

// handler is the sole place that invokes the user callback. It cancels any
// live watch, maps the final state to a user-visible error, applies
// TCP_NODELAY on success, invokes the callback at most once, and then
// destroys the attempt.
func (a *Attempt) handler() {
	a.mu.Lock()
	if a.handled {
		a.mu.Unlock()
		return
	}
	a.handled = true
	if a.state == StatePending {
		a.state = StateError
		a.lastErr = ioerr.TimedOut(a.host, a.port)
	}
	a.mu.Unlock()

	a.unwatchReadiness()
	if a.table.Model == ioengine.ModelCompletion && a.cfd != nil {
		// Best-effort: abort an in-flight submission promptly instead of
		// waiting for its own OS-level timeout to elapse.
		a.mu.Lock()
		state := a.state
		a.mu.Unlock()
		if state != StateConnected {
			_ = a.table.Completion.Close(a.cfd)
		}
	}

	a.mu.Lock()
	state := a.state
	lastErr := a.lastErr
	sysErr := a.sysErr
	a.mu.Unlock()

	var libErr *ioerr.LibError
	switch state {
	case StateConnected:
		libErr = nil
	case StateError:
		if lastErr != nil && lastErr.Kind == ioerr.KindConnectError {
			libErr = ioerr.ToLibraryError(a.host, a.port, sysErr)
		} else {
			libErr = lastErr
		}
	case StateCancelled:
		libErr = nil // unused: callback skipped below
	}

	if state != StateCancelled {
		var sockOut *iosocket.Handle
		if libErr == nil {
			a.sock.LoadSocknames()
			a.log.ConnectionSuccess()
			if a.vals.TCPNoDelay {
				ndErr := a.sock.SetNoDelay(true)
				a.log.NoDelayApplied(ndErr == nil, ndErr)
			}
			sockOut = a.sock
		} else {
			a.log.FinalFailure(string(libErr.Kind), sysErr)
		}

		a.mu.Lock()
		a.inUserHandler = true
		a.mu.Unlock()
		if a.cb != nil {
			a.cb(sockOut, a.arg, libErr, sysErr)
		}
		a.mu.Lock()
		a.inUserHandler = false
		a.mu.Unlock()
	}

	a.destroy(state == StateConnected)
}

// destroy releases the timer and, unless ownership of the socket was
// transferred to the user callback on success, unrefs it.
func (a *Attempt) destroy(transferred bool) {
	a.timer.Release()
	if !transferred {
		a.sock.Unref()
	}
	a.addrs = nil
}

func familyName(f resolve.Family) string {
	if f == resolve.FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}
