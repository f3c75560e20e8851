// Package watcher reloads a payload file when it changes on disk, using
// fsnotify on the parent directory with a stat-polling fallback. Files on
// network filesystems are polled from the start.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/datefacet/pkg/debug"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode, e.g. on network filesystems where
// inotify events never arrive.
const ForcePollEnvVar = "DATEFACET_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period before OnChange fires.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the change callback.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.onChange = fn
		}
	}
}

// WithOnError sets the error callback.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// WithForcePoll skips fsnotify.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher monitors one file.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	onChange     func()
	onError      func(error)
	forcePoll    bool

	mu        sync.RWMutex
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	polling   bool
	fsType    FilesystemType
	started   bool
	cancel    context.CancelFunc
	lastMtime time.Time
	lastSize  int64
	changeCh  chan struct{}
}

// New creates a watcher for path. It does nothing until Start.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onChange:     func() {},
		onError:      func(error) {},
		changeCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Start begins watching until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	switch {
	case err == nil:
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	case os.IsPermission(err):
		return ErrPermission
	default:
		// Not created yet; the first write will be reported.
		w.lastMtime, w.lastSize = time.Time{}, 0
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.fsType = detectFilesystemTypeFunc(w.path)
	w.polling = w.forcePoll || envBool(ForcePollEnvVar) || isRemoteFilesystem(w.fsType)
	if isRemoteFilesystem(w.fsType) {
		debug.Log("watcher: %s is on %s, polling", w.path, w.fsType)
	}
	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fsw.Add(filepath.Dir(w.path))
			if err != nil {
				fsw.Close()
			}
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			w.polling = true
		} else {
			w.fsWatcher = fsw
			go w.watchEvents(ctx, fsw)
		}
	}
	if w.polling {
		go w.watchPolling(ctx)
	}
	w.started = true
	return nil
}

// Stop ends watching. The Changed channel stays open.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// FilesystemType is the classification made by the last Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after every debounced change.
func (w *Watcher) Changed() <-chan struct{} { return w.changeCh }

// Path is the absolute watched path.
func (w *Watcher) Path() string { return w.path }

func (w *Watcher) watchEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove):
				w.onError(ErrFileRemoved)
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename):
				w.debouncer.Trigger(w.notify)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(w.path)
		if err != nil {
			w.mu.RLock()
			existed := !w.lastMtime.IsZero()
			w.mu.RUnlock()
			switch {
			case os.IsNotExist(err):
				if existed {
					w.onError(ErrFileRemoved)
				}
			case os.IsPermission(err):
				w.onError(ErrPermission)
			default:
				w.onError(err)
			}
			continue
		}

		w.mu.Lock()
		changed := info.ModTime().After(w.lastMtime) || info.Size() != w.lastSize
		if changed {
			w.lastMtime, w.lastSize = info.ModTime(), info.Size()
		}
		w.mu.Unlock()
		if changed {
			w.debouncer.Trigger(w.notify)
		}
	}
}

func (w *Watcher) notify() {
	if !w.IsStarted() {
		return
	}
	debug.Log("watcher: %s changed", w.path)
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
