package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher reloads the configuration file when it changes on disk. It
// polls the file's modification time, which works on every platform
// and is cheap at the one-file scale involved here. A reload that fails
// validation keeps the previous configuration and only logs.
type Watcher struct {
	path     string
	interval time.Duration
	loader   *Loader
	logger   *zap.Logger

	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	callbacks []func(*Config)
	lastMod   time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher for one configuration file. A missing
// file is watched for creation.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config: watcher needs a file path")
	}
	w := &Watcher{
		path:     path,
		interval: time.Second,
		loader:   NewLoader().WithConfigPath(path),
		logger:   zap.NewNop(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	} else {
		w.logger.Warn("config file does not exist, watching for creation",
			zap.String("path", path))
	}
	return w, nil
}

// OnReload registers a callback invoked with each successfully reloaded
// configuration. Register before Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start begins polling until the context ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("config: watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	go w.pollLoop(ctx)

	w.logger.Info("config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval),
	)
	return nil
}

// Stop halts polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("config watcher stopped")
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.checkFile()
		}
	}
}

// checkFile reloads when the modification time moved forward.
func (w *Watcher) checkFile() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()
	if !changed {
		return
	}

	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("config reloaded", zap.String("path", w.path))

	w.mu.Lock()
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}
