// Package logging implements the fixed log-record shape used by the
// connect core: a "<host:port> (SOCK=<id>)" prefix on every record, plus
// the specific events the core emits. Formatting and shipping are out of
// scope here; this package only calls through to the hclog.Logger a
// Settings was constructed with.
package logging

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Log is a per-attempt logging handle bound to one socket's identity.
type Log struct {
	l      hclog.Logger
	prefix string
	sockID string
}

// New returns a Log for the given endpoint and socket-handle id. sockID is
// also emitted as a separate corr_id field, supplementing the fixed prefix
// with a stable correlation id a caller can grep across retries of the same
// socket, since Go offers no stable pointer identity to print in the prefix
// itself.
func New(base hclog.Logger, host, port, sockID string) *Log {
	if base == nil {
		base = hclog.NewNullLogger()
	}
	return &Log{
		l:      base,
		prefix: host + ":" + port + " (SOCK=" + sockID + ")",
		sockID: sockID,
	}
}

func (lg *Log) args(extra ...interface{}) []interface{} {
	return append([]interface{}{"endpoint", lg.prefix, "corr_id", lg.sockID}, extra...)
}

// AttemptStart logs the beginning of a connect attempt with its timeout.
func (lg *Log) AttemptStart(timeout time.Duration) {
	lg.l.Info("attempt start", lg.args("timeout", timeout)...)
}

// DNSFailure logs a fatal name-resolution failure.
func (lg *Log) DNSFailure(err error) {
	lg.l.Error("dns resolution failed", lg.args("error", err)...)
}

// DescriptorCreated logs successful descriptor allocation for a candidate.
func (lg *Log) DescriptorCreated(family string) {
	lg.l.Debug("descriptor created", lg.args("family", family)...)
}

// ErrorEvent logs a received error event on a watched descriptor.
func (lg *Log) ErrorEvent(err error) {
	lg.l.Debug("received error event", lg.args("error", err)...)
}

// AsyncWait logs the transition into a suspended, awaiting-callback state.
func (lg *Log) AsyncWait() {
	lg.l.Trace("transition to async wait", lg.args()...)
}

// ConnectionSuccess logs a successful connect.
func (lg *Log) ConnectionSuccess() {
	lg.l.Info("connection established", lg.args()...)
}

// NoDelayApplied logs the outcome of an attempted TCP_NODELAY toggle.
func (lg *Log) NoDelayApplied(ok bool, err error) {
	if ok {
		lg.l.Debug("tcp_nodelay applied", lg.args()...)
		return
	}
	lg.l.Warn("tcp_nodelay apply failed", lg.args("error", err)...)
}

// FinalFailure logs the terminal error delivered to the user callback.
func (lg *Log) FinalFailure(kind string, errno error) {
	lg.l.Error("connect failed", lg.args("kind", kind, "errno", errno)...)
}
