package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/fsnotify/fsnotify"
)

// Watcher re-applies a configuration file to a running system whenever the file changes.
// Settings that only take effect at startup, the feature intent and the window, are reported and
// otherwise ignored until restart.
type Watcher struct {
	mu       *sync.Mutex
	logger   *slog.Logger
	path     string
	system   transparency.System
	watcher  *fsnotify.Watcher
	debounce time.Duration
	current  Config
	reloads  chan Config
	done     chan struct{}
}

// WatcherBuilderOption is a functional option applied by NewWatcher.
type WatcherBuilderOption func(*Watcher)

// WithWatcherLogger sets the logger reload results are reported to.
func WithWatcherLogger(logger *slog.Logger) WatcherBuilderOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets how long the watcher waits for writes to settle before reloading.
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher starts watching the configuration file at path. The directory is watched rather than
// the file so editors that replace the file on save keep triggering reloads.
//
// Parameters:
//   - path: the configuration file
//   - current: the configuration the system was created with
//   - sys: the system reloads are applied to
//   - options: functional options to configure the watcher
//
// Returns:
//   - *Watcher: the watcher, stopped with Close
//   - error: an error creating the file system watch
func NewWatcher(path string, current Config, sys transparency.System, options ...WatcherBuilderOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{
		mu:       &sync.Mutex{},
		logger:   slog.Default(),
		path:     abs,
		system:   sys,
		debounce: 100 * time.Millisecond,
		current:  current,
		reloads:  make(chan Config, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		w.watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	return w, nil
}

// Run processes file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "path", w.path, "error", err)
		}
	}
}

// Reloads delivers every configuration that was applied successfully. Only the latest one is
// kept when the receiver falls behind.
func (w *Watcher) Reloads() <-chan Config {
	return w.reloads
}

// Current returns the configuration applied last.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops Run and releases the file system watch.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous settings", "error", err)
		return
	}

	w.mu.Lock()
	prev := w.current
	w.mu.Unlock()

	if cfg.Features != prev.Features {
		w.logger.Warn("feature changes take effect after restart", "requested", cfg.Features.String())
	}
	if cfg.Window != prev.Window {
		w.logger.Warn("window changes take effect after restart")
	}
	if err := cfg.Apply(w.system); err != nil {
		w.logger.Warn("config reload rejected", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.logger.Info("config reloaded", "path", w.path, "technique", cfg.Technique)

	select {
	case <-w.reloads:
	default:
	}
	w.reloads <- cfg
}
