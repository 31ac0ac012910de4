// File: internal/watch/watcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/momentics/hioload-livereload/api"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	minPollInterval     = time.Millisecond
)

// Watcher monitors one file and hands accepted changes to a handler.
type Watcher struct {
	path         string
	dir          string
	base         string
	debouncer    *Debouncer
	handler      api.ChangeHandler
	pollInterval time.Duration
	log          *slog.Logger
}

// New creates a watcher for path. The file must exist; its current
// modification time seeds the debouncer.
func New(path string, debounce, pollInterval time.Duration, handler api.ChangeHandler, log *slog.Logger) (*Watcher, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat watched file: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("watched path %s is a directory", path)
	}
	if log == nil {
		log = slog.Default()
	}
	switch {
	case pollInterval <= 0:
		pollInterval = defaultPollInterval
	case pollInterval < minPollInterval:
		// The inotify wait is expressed in whole milliseconds; anything
		// shorter would turn it into a busy loop.
		pollInterval = minPollInterval
	}
	return &Watcher{
		path:         path,
		dir:          filepath.Dir(path),
		base:         filepath.Base(path),
		debouncer:    NewDebouncer(debounce, fi.ModTime()),
		handler:      handler,
		pollInterval: pollInterval,
		log:          log,
	}, nil
}

// Path returns the watched file path.
func (w *Watcher) Path() string {
	return w.path
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching file", "file", w.path, "debounce", w.debouncer.threshold)
	return w.watch(ctx)
}

// notify handles one underlying notification.
func (w *Watcher) notify(ctx context.Context) {
	fi, err := os.Stat(w.path)
	if err != nil {
		// Editors that save by rename leave a short gap without the file.
		w.log.Debug("stat after notification", "file", w.path, "err", err)
		return
	}
	if !w.debouncer.Observe(fi.ModTime()) {
		return
	}
	ev := api.ChangeEvent{Name: w.base, ModTime: fi.ModTime()}
	w.log.Debug("file changed", "file", w.path, "modified", ev.ModTime)
	if err := w.handler.OnChange(ctx, ev); err != nil {
		w.log.Warn("change handler failed", "file", w.path, "err", err)
	}
}

// poll stats the file every pollInterval. It backs platforms without
// inotify and the Linux watcher when inotify is unavailable.
func (w *Watcher) poll(ctx context.Context) error {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.notify(ctx)
		}
	}
}
