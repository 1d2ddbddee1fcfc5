package config

import (
	"os"

	"github.com/fsnotify/fsnotify"
)

// Parser turns a config file's raw bytes into Values. Callers supply the
// format (JSON, HCL, whatever the surrounding application already parses);
// this package only owns the reload plumbing.
type Parser func(data []byte) (Values, error)

// fileWatcher wraps fsnotify.Watcher: a single goroutine drains the
// underlying event/error
// channels and reparses the watched file on every write.
type fileWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// WatchFile starts watching path for writes, reparsing it with parse and
// atomically swapping s.current on every successful reparse. A parse
// failure is logged and the previous Values are kept. Only one watcher may
// be active per Settings; calling WatchFile again replaces it.
func (s *Settings) WatchFile(path string, parse Parser) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	initial, err := parse(data)
	if err != nil {
		return err
	}
	s.current.Store(initial)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return err
	}

	if s.watcher != nil {
		_ = s.watcher.close()
	}
	fw := &fileWatcher{w: w, done: make(chan struct{})}
	s.watcher = fw
	go s.reloadLoop(fw, path, parse)
	return nil
}

func (s *Settings) reloadLoop(fw *fileWatcher, path string, parse Parser) {
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn("config: reload read failed", "path", path, "error", err)
				continue
			}
			vals, err := parse(data)
			if err != nil {
				s.logger.Warn("config: reload parse failed", "path", path, "error", err)
				continue
			}
			s.current.Store(vals)
			s.logger.Info("config: reloaded", "path", path)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config: watch error", "error", err)
		case <-fw.done:
			return
		}
	}
}

func (fw *fileWatcher) close() error {
	close(fw.done)
	return fw.w.Close()
}
