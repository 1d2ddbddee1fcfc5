package connio

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nitro-kv/connio/internal/ioengine"
)

func TestConnectRejectsInvalidTable(t *testing.T) {
	if _, err := Connect(nil, testSettings(false), "host", "11210", time.Second, nil, nil); err != ErrInvalidTable {
		t.Fatalf("expected ErrInvalidTable for a nil table, got %v", err)
	}
	if _, err := Connect(&ioengine.Table{}, testSettings(false), "host", "11210", time.Second, nil, nil); err != ErrInvalidTable {
		t.Fatalf("expected ErrInvalidTable for a table with no dispatch loop, got %v", err)
	}
}

func TestConnectReturnsHandleImmediatelyEvenOnBadHost(t *testing.T) {
	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	// An invalid port fails net.LookupPort synchronously, with no real
	// network access, giving a deterministic resolve failure to assert the
	// deferred-dispatch contract against.
	a, err := Connect(table, testSettings(false), "kv.example.com", "not-a-port", time.Second, recordingCallback(results), nil)
	if err != nil {
		t.Fatalf("Connect should never return a synchronous resolve error: %v", err)
	}
	if a == nil {
		t.Fatalf("expected a non-nil Attempt handle")
	}

	r := waitCallback(t, results)
	if r.libErr == nil {
		t.Fatalf("expected an eventual UNKNOWN_HOST failure for an invalid port")
	}
}

func TestConnectCancelIsSafeOnNilAttempt(t *testing.T) {
	ConnectCancel(nil) // must not panic
}

func TestConnectCancelStopsPendingAttempt(t *testing.T) {
	eng := newFakeReadinessEngine(unix.EINPROGRESS)
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	// A literal IP address resolves locally with no real network access.
	a, err := Connect(table, testSettings(false), "127.0.0.1", "11210", time.Second, recordingCallback(results), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return eng.getWatchCB() != nil })
	ConnectCancel(a)

	select {
	case r := <-results:
		t.Fatalf("expected no callback after cancel, got %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWrapFDRequiresReadinessModel(t *testing.T) {
	eng := newFakeCompletionEngine()
	table := ioengine.NewCompletionTable(eng)
	fd := &fakeRDesc{}
	if _, err := WrapFD(table, fd, "kv.example.com", "11210"); err != ErrWrapFDRequiresReadiness {
		t.Fatalf("expected ErrWrapFDRequiresReadiness, got %v", err)
	}
}

func TestWrapFDBuildsHandle(t *testing.T) {
	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	fd := &fakeRDesc{}

	h, err := WrapFD(table, fd, "kv.example.com", "11210")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatalf("expected a non-nil handle")
	}
	if h.LocalAddr() == "" || h.RemoteAddr() == "" {
		t.Fatalf("expected socknames to be loaded from the wrapped descriptor")
	}

	Shutdown(h)
	if !fd.closed {
		t.Fatalf("expected Shutdown to close the wrapped descriptor")
	}
	Shutdown(h) // idempotent, must not panic
}

func TestShutdownIsSafeOnNilHandle(t *testing.T) {
	Shutdown(nil) // must not panic
}
