package connio

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/nitro-kv/connio/internal/ioengine"
	"github.com/nitro-kv/connio/internal/resolve"
	"github.com/nitro-kv/connio/internal/resolve/resolvemock"
)

var errResolveBoom = errors.New("mock resolve failure")

// TestAttemptResolvesWithExactArguments exercises the generated Resolver
// mock rather than the hand-written fakeLookup seam, so the resolve call's
// exact arguments (not just its eventual return value) are asserted.
func TestAttemptResolvesWithExactArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	real := &resolve.SystemResolver{LookupIPAddr: fakeLookup("127.0.0.1")}
	list, err := real.Resolve(context.Background(), "kv.example.com", "11210", resolve.IPv6Allow)
	if err != nil {
		t.Fatalf("unexpected error building the fixture list: %v", err)
	}

	mockResolver := resolvemock.NewMockResolver(ctrl)
	mockResolver.EXPECT().
		Resolve(gomock.Any(), "kv.example.com", "11210", resolve.IPv6Allow).
		Times(1).
		Return(list, nil)

	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	_, err = newAttempt(table, testSettings(false), mockResolver,
		"kv.example.com", "11210", time.Second, recordingCallback(results), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := waitCallback(t, results)
	if r.libErr != nil {
		t.Fatalf("expected success, got %v", r.libErr)
	}
}

// TestAttemptPropagatesMockedResolveFailure exercises the mock's failure
// path alongside the success path above.
func TestAttemptPropagatesMockedResolveFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockResolver := resolvemock.NewMockResolver(ctrl)
	mockResolver.EXPECT().
		Resolve(gomock.Any(), "kv.example.com", "11210", resolve.IPv6Allow).
		Times(1).
		Return(nil, errResolveBoom)

	eng := newFakeReadinessEngine()
	table := ioengine.NewReadinessTable(eng)
	results := make(chan callbackResult, 1)

	a, err := newAttempt(table, testSettings(false), mockResolver,
		"kv.example.com", "11210", time.Second, recordingCallback(results), nil)
	if err == nil {
		t.Fatalf("expected a resolve error")
	}
	a.table.Loop.Post(a.handler)

	r := waitCallback(t, results)
	if r.libErr == nil {
		t.Fatalf("expected a propagated UNKNOWN_HOST failure")
	}
}
