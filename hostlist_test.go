package connio

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nitro-kv/connio/internal/ioengine"
)

func TestHostRecordValidate(t *testing.T) {
	cases := []struct {
		rec HostRecord
		ok  bool
	}{
		{HostRecord{Host: "kv.example.com", Port: "11210"}, true},
		{HostRecord{Host: "", Port: "11210"}, false},
		{HostRecord{Host: "kv.example.com", Port: ""}, false},
		{HostRecord{Host: "kv.example.com", Port: "123456"}, false},
	}
	for _, c := range cases {
		err := c.rec.validate()
		if (err == nil) != c.ok {
			t.Errorf("validate(%+v): got err=%v, want ok=%v", c.rec, err, c.ok)
		}
	}
}

func TestSequentialRollover(t *testing.T) {
	records := []HostRecord{{}, {}, {}}
	if got := SequentialRollover(records, 0); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestConnectFromHostListRejectsEmpty(t *testing.T) {
	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	if _, err := ConnectFromHostList(table, testSettings(false), nil, nil, time.Second, nil, nil); err == nil {
		t.Fatalf("expected an error for an empty host list")
	}
}

func TestConnectFromHostListRejectsInvalidTable(t *testing.T) {
	records := []HostRecord{{Host: "kv.example.com", Port: "11210"}}
	if _, err := ConnectFromHostList(nil, testSettings(false), records, nil, time.Second, nil, nil); err != ErrInvalidTable {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
}

func TestConnectFromHostListSkipsUnresolvableFirstHost(t *testing.T) {
	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	records := []HostRecord{
		{Host: "down.example.com", Port: "11210"},
		{Host: "up.example.com", Port: "11210"},
	}

	calls := 0
	resolver := func(ctx context.Context, host string) ([]net.IPAddr, error) {
		calls++
		if host == "down.example.com" {
			return nil, errors.New("no such host")
		}
		return []net.IPAddr{{IP: net.ParseIP("127.0.0.1")}}, nil
	}

	a, err := connectFromHostListWithResolver(table, testSettings(false), records, SequentialRollover, time.Second, recordingCallback(results), nil, resolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatalf("expected a non-nil Attempt for the second, resolvable host")
	}

	r := waitCallback(t, results)
	if r.libErr != nil {
		t.Fatalf("expected success against the second host, got %v", r.libErr)
	}
	if calls != 2 {
		t.Fatalf("expected resolution attempted against both hosts, got %d calls", calls)
	}
}

func TestConnectFromHostListAllUnresolvableDeliversDeferredFailure(t *testing.T) {
	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	records := []HostRecord{
		{Host: "down1.example.com", Port: "11210"},
		{Host: "down2.example.com", Port: "11210"},
	}
	resolver := func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, errors.New("no such host")
	}

	a, err := connectFromHostListWithResolver(table, testSettings(false), records, SequentialRollover, time.Second, recordingCallback(results), nil, resolver)
	if err != nil {
		t.Fatalf("expected the final exhausted attempt to still be returned, got error: %v", err)
	}
	if a == nil {
		t.Fatalf("expected a non-nil Attempt even when every host fails to resolve")
	}

	r := waitCallback(t, results)
	if r.libErr == nil {
		t.Fatalf("expected a deferred UNKNOWN_HOST failure")
	}
}
