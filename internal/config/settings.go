// Package config holds the read-only Settings snapshot an Attempt
// consults at construction time, with optional file-backed hot reload.
//
// Settings is shared and reference-counted by the caller (spec's shared
// read-only policy): an in-flight attempt copies the values it needs out
// of Settings once, at construction, and never observes a reload midway
// through its own lifetime.
package config

import (
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/nitro-kv/connio/internal/resolve"
)

// Values is the immutable snapshot an Attempt reads once at construction.
type Values struct {
	IPv6       resolve.IPv6Policy
	TCPNoDelay bool
}

// Settings is the shared, read-only configuration object. Its current
// Values can be swapped atomically by WatchFile's reload loop; readers
// never block on a writer and never see a torn update.
type Settings struct {
	current atomic.Value // Values
	logger  hclog.Logger
	watcher *fileWatcher
}

// New creates a Settings pre-populated with initial and bound to logger
// (a nil logger is replaced with hclog.NewNullLogger(), which discards
// output).
func New(initial Values, logger hclog.Logger) *Settings {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Settings{logger: logger}
	s.current.Store(initial)
	return s
}

// Snapshot returns the current Values by copy.
func (s *Settings) Snapshot() Values {
	return s.current.Load().(Values)
}

// Logger returns the logging sink this Settings was constructed with.
func (s *Settings) Logger() hclog.Logger { return s.logger }

// Close stops any active file watcher. Safe to call on a Settings with no
// watcher attached.
func (s *Settings) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.close()
}
