package connio

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nitro-kv/connio/internal/config"
	"github.com/nitro-kv/connio/internal/ioengine"
	"github.com/nitro-kv/connio/internal/resolve"
)

// HostRecord is one endpoint in a HostList: host is limited to 255 bytes,
// port a ≤5-digit decimal string.
type HostRecord struct {
	Host string
	Port string
}

func (r HostRecord) validate() error {
	if len(r.Host) == 0 || len(r.Host) > 255 {
		return fmt.Errorf("connio: host %q must be 1-255 bytes", r.Host)
	}
	if len(r.Port) == 0 || len(r.Port) > 5 {
		return fmt.Errorf("connio: port %q must be 1-5 digits", r.Port)
	}
	return nil
}

// Rollover picks the next index into records to try after index current
// failed to resolve. The host-list rotation strategy itself is left to the
// caller as a pluggable collaborator; SequentialRollover is the default.
type Rollover func(records []HostRecord, current int) int

// SequentialRollover advances one record at a time, in order.
func SequentialRollover(records []HostRecord, current int) int {
	return current + 1
}

// ConnectFromHostList starts an attempt against the first host in records
// whose name resolves, trying successive hosts (per rollover) while
// resolution itself fails. This is a start-time-only fallback: once an
// attempt successfully begins its I/O driver, ConnectFromHostList returns
// that attempt immediately — it does not retry across hosts if the
// returned attempt later fails to connect. Picking the next host to try
// is the rollover strategy's job; this only covers the narrow
// resolve-retry gap before the state machine's own timer ever starts.
//
// If every record's resolution fails, the last attempt constructed is
// still returned (with its deferred UNKNOWN_HOST callback dispatched),
// rather than silently returning no handle at all.
func ConnectFromHostList(table *ioengine.Table, settings *config.Settings, records []HostRecord, rollover Rollover, timeout time.Duration, cb Callback, arg interface{}) (*Attempt, error) {
	return connectFromHostListWithResolver(table, settings, records, rollover, timeout, cb, arg, nil)
}

// connectFromHostListWithResolver is ConnectFromHostList's implementation,
// taking an injectable lookup function as its test seam (mirroring
// resolve.SystemResolver.LookupIPAddr) so tests can drive multi-host
// rollover without touching real DNS.
func connectFromHostListWithResolver(table *ioengine.Table, settings *config.Settings, records []HostRecord, rollover Rollover, timeout time.Duration, cb Callback, arg interface{}, lookup func(ctx context.Context, host string) ([]net.IPAddr, error)) (*Attempt, error) {
	if table == nil || table.Loop == nil {
		return nil, ErrInvalidTable
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("connio: empty host list")
	}
	if rollover == nil {
		rollover = SequentialRollover
	}

	resolver := &resolve.SystemResolver{LookupIPAddr: lookup}
	var last *Attempt
	for i := 0; i >= 0 && i < len(records); i = rollover(records, i) {
		rec := records[i]
		if err := rec.validate(); err != nil {
			continue
		}
		a, err := newAttempt(table, settings, resolver, rec.Host, rec.Port, timeout, cb, arg)
		if err == nil {
			return a, nil
		}
		last = a
	}
	if last == nil {
		return nil, fmt.Errorf("connio: no valid host records")
	}
	last.table.Loop.Post(last.handler)
	return last, nil
}
