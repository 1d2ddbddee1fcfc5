// Package dispatch implements the single-threaded event loop that drives
// one IOTable's attempts: a goroutine draining a channel of posted
// closures (timer fires, watch callbacks, completion callbacks), so every
// state transition a connect attempt makes is serialized on one thread,
// even though the engines that feed it (epoll, kqueue, goroutine-per-dial)
// each run on their own goroutine.
//
// A context-scoped goroutine baseline keeps this portable instead of
// depending on an OS-specific reactor.
package dispatch

import "context"

// Loop is a per-IOTable dispatch goroutine. Post is safe to call from any
// goroutine, including from inside a task the Loop is currently running.
type Loop struct {
	tasks  chan func()
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a Loop and returns it. Stop must be called to release the
// backing goroutine.
func New() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{tasks: make(chan func(), 256), ctx: ctx, cancel: cancel}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.tasks:
			if l.ctx.Err() != nil {
				return
			}
			fn()
		case <-l.ctx.Done():
			return
		}
	}
}

// Post enqueues fn to run on the loop's goroutine, in submission order. It
// never runs fn synchronously, even when called from the loop's own
// goroutine: this is what gives Timer.Signal its "next turn, not this
// stack frame" semantics.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.ctx.Done():
	}
}

// Stop terminates the loop. Pending posted tasks are dropped.
func (l *Loop) Stop() {
	l.cancel()
}
