// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Func loads and publishes a new snapshot. On error the old snapshot
// must stay in place.
type Func func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the file must be quiet before reloading.
	// Default: 500ms
	Debounce time.Duration

	// Logger receives reload results. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{Debounce: 500 * time.Millisecond, Logger: slog.Default()}
}

// Stats describes reload activity.
type Stats struct {
	Reloads    int64     `json:"reloads"`
	Failures   int64     `json:"failures"`
	LastReload time.Time `json:"last_reload,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// Watcher reloads when a file changes.
//
// Description:
//
//	Watches the file's directory rather than the file, so that a file
//	replaced by rename (as ExportManifest does) keeps being watched.
//	Events for the file are debounced; the reload function runs once the
//	debounce window passes without further events.
//
// Thread Safety: Safe for concurrent use. The reload function is called
// from a single goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	reload   Func
	debounce time.Duration
	logger   *slog.Logger

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
	stats    Stats
}

// NewWatcher creates a watcher for path. Call Start to begin watching.
//
// Inputs:
//   - path: The file to watch. Its directory must exist.
//   - reload: Called after the file changes.
//   - opts: Optional configuration (nil uses defaults).
//
// Outputs:
//   - *Watcher: The watcher.
//   - error: Non-nil if fsnotify could not be initialized.
func NewWatcher(path string, reload Func, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		watcher:  fw,
		reload:   reload,
		debounce: o.Debounce,
		logger:   o.Logger.With(slog.String("component", "reload"), slog.String("path", abs)),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching. The watch ends when ctx is cancelled or Stop is
// called. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watching = true
	go w.loop(ctx)
	return nil
}

// Stop ends the watch and waits for an in-flight reload to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		started := w.watching
		w.mu.Unlock()
		if started {
			<-w.stopped
		}
		w.watcher.Close()
	})
}

// Stats returns reload counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer, timerC = nil, nil
			w.run(ctx)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	start := time.Now()
	err := w.reload(ctx)

	w.mu.Lock()
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	} else {
		w.stats.Reloads++
		w.stats.LastReload = time.Now()
		w.stats.LastError = ""
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("reload failed, keeping current snapshot", slog.String("error", err.Error()))
		return
	}
	w.logger.Info("reloaded", slog.Duration("duration", time.Since(start)))
}
