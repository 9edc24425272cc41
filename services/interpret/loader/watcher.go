// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wu0o0yu/aika-sub001/services/interpret/network"
)

// DefaultDebounce is used when WatcherOptions.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// ReloadHandler is called after every debounced reload attempt.
type ReloadHandler func(res ApplyResult, err error)

// WatcherOptions configures a ModelWatcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more writes before reloading.
	Debounce time.Duration

	// OnReload is notified of every reload. Optional.
	OnReload ReloadHandler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ModelWatcher re-applies a network file to a running model whenever
// the file changes.
//
// Description:
//
//	The directory of the file is watched so that editors which replace
//	the file by rename are seen. Events for other files are ignored.
//	Bursts of events are collapsed into one reload after the debounce
//	window. A reload parses the file and calls NetworkDefinition.Apply,
//	which commits weights and biases through the model's writer API.
//
// Thread Safety: Safe for concurrent use. OnReload is called from a
// single goroutine.
type ModelWatcher struct {
	path     string
	model    *network.Model
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadHandler
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewModelWatcher creates a watcher for path. Call Start to begin.
func NewModelWatcher(path string, model *network.Model, opts WatcherOptions) (*ModelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ModelWatcher{
		path:     abs,
		model:    model,
		watcher:  w,
		debounce: opts.Debounce,
		onReload: opts.OnReload,
		logger:   opts.Logger.With(slog.String("component", "model_watcher"), slog.String("path", abs)),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; the loop runs until
// ctx is cancelled or Stop is called. Cancelling ctx stops the watcher
// and releases its file descriptors.
func (w *ModelWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	go w.loop(ctx)
	w.logger.Info("watching network file")
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *ModelWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *ModelWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Reload applies the current file content once.
func (w *ModelWatcher) Reload(ctx context.Context) (ApplyResult, error) {
	def, err := LoadNetworkFile(w.path)
	if err != nil {
		return ApplyResult{}, err
	}
	return def.Apply(ctx, w.model)
}

func (w *ModelWatcher) loop(ctx context.Context) {
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
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
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
			timer = nil
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *ModelWatcher) reload(ctx context.Context) {
	res, err := w.Reload(ctx)
	if err != nil {
		w.logger.Warn("network reload failed", slog.String("error", err.Error()))
	} else {
		w.logger.Info("network reloaded",
			slog.Int("weights", res.Weights),
			slog.Int("biases", res.Biases),
			slog.Int("neurons", res.Neurons),
			slog.Int("synapses", res.Synapses),
			slog.Uint64("model_version", w.model.Version()),
		)
	}
	if w.onReload != nil {
		w.onReload(res, err)
	}
}
