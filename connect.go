package connio

import (
	"errors"
	"time"

	"github.com/nitro-kv/connio/internal/config"
	"github.com/nitro-kv/connio/internal/ioengine"
	"github.com/nitro-kv/connio/internal/iosocket"
	"github.com/nitro-kv/connio/internal/resolve"
)

// ErrInvalidTable is returned when the supplied IOTable is nil or has no
// dispatch loop attached (see ioengine.NewReadinessTable/NewCompletionTable).
var ErrInvalidTable = errors.New("connio: invalid IOTable")

// ErrWrapFDRequiresReadiness is returned by WrapFD when given a completion
// model IOTable. A wrapped descriptor only makes sense under the readiness
// model, where the table can poll it directly; completion-model tables have
// no way to watch a foreign descriptor for I/O readiness.
var ErrWrapFDRequiresReadiness = errors.New("connio: WrapFD requires a readiness IOTable")

// Connect starts an asynchronous connect attempt against host:port and
// returns its AttemptHandle immediately; the user callback always fires
// later, from the IOTable's dispatch loop, never synchronously from this
// call — even when name resolution itself fails.
func Connect(table *ioengine.Table, settings *config.Settings, host, port string, timeout time.Duration, cb Callback, arg interface{}) (*Attempt, error) {
	if table == nil || table.Loop == nil {
		return nil, ErrInvalidTable
	}
	a, err := newAttempt(table, settings, &resolve.SystemResolver{}, host, port, timeout, cb, arg)
	if err != nil {
		// Resolution failed before the attempt's timer was armed; still
		// deliver the deferred UNKNOWN_HOST callback through the normal
		// dispatch path rather than inline here.
		a.table.Loop.Post(a.handler)
	}
	return a, nil
}

// ConnectCancel cancels a, per Attempt.Cancel's semantics.
func ConnectCancel(a *Attempt) {
	if a == nil {
		return
	}
	a.Cancel()
}

// WrapFD constructs a Socket Handle around an already-connected readiness
// descriptor, bypassing the state machine entirely.
func WrapFD(table *ioengine.Table, fd ioengine.ReadinessDescriptor, host, port string) (*iosocket.Handle, error) {
	if table == nil || table.Model != ioengine.ModelReadiness {
		return nil, ErrWrapFDRequiresReadiness
	}
	h := iosocket.New(host, port)
	h.SetDescriptor(fd)
	h.LoadSocknames()
	return h, nil
}

// Shutdown is the public close operation on a Socket Handle: it runs
// shutdown unconditionally, regardless of outstanding references.
func Shutdown(h *iosocket.Handle) {
	if h == nil {
		return
	}
	h.Shutdown()
}
