package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads the configuration file during development. Editors
// replace files rather than writing in place, so the watch covers the
// containing directory and reloads are debounced.
type Watcher struct {
	loader   *Loader
	debounce time.Duration

	fsw *fsnotify.Watcher

	stop chan struct{}
	done chan struct{}

	mu       sync.Mutex
	lastHash string

	onChange func(*Config)
	onError  func(error)
}

// WatcherOption configures the hot reloader.
type WatcherOption func(*Watcher)

// WithDebounce overrides the default debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// OnChange registers a callback fired after each successful reload.
func OnChange(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// OnError registers a callback for reload failures.
func OnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher wires a file watcher around the loader. The loader must point
// at a real file.
func NewWatcher(loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.Path == "" {
		return nil, errors.New("config: watcher needs a loader with a path")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	w := &Watcher{
		loader:   loader,
		debounce: 150 * time.Millisecond,
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = 150 * time.Millisecond
	}
	return w, nil
}

// Start loads the initial config and begins watching its directory.
func (w *Watcher) Start() (*Config, error) {
	cfg, err := w.loader.Load()
	if err != nil {
		return nil, err
	}
	if err := w.fsw.Add(filepath.Dir(w.loader.Path)); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", w.loader.Path, err)
	}
	w.lastHash = cfg.SourceHash()
	go w.loop()
	return cfg, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.stop)
	<-w.done
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	schedule := func() {
		if timer == nil {
			timer = time.AfterFunc(w.debounce, w.reload)
			return
		}
		timer.Reset(w.debounce)
	}

	target := filepath.Base(w.loader.Path)
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case err := <-w.fsw.Errors:
			if err != nil && w.onError != nil {
				w.onError(err)
			}
		case evt := <-w.fsw.Events:
			if filepath.Base(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	same := cfg.SourceHash() == w.lastHash
	if !same {
		w.lastHash = cfg.SourceHash()
	}
	w.mu.Unlock()

	if !same && w.onChange != nil {
		w.onChange(cfg)
	}
}
