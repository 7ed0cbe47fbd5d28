// Package watcher watches a drop folder and hands each new or rewritten
// extension package to a handler once writes to it have settled.
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

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// DefaultDebounce is how long a path must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the package extensions handled by default.
var DefaultExtensions = []string{".crx", ".zip"}

// Handler processes one settled package file.
type Handler func(ctx context.Context, path string) error

// Watcher watches a single directory (not recursively).
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	exts     map[string]bool
	initial  bool
	log      *logging.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timers  map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a path is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions replaces the handled extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithInitialScan also handles matching files already in the directory
// when Run starts.
func WithInitialScan() Option {
	return func(w *Watcher) { w.initial = true }
}

// New creates a watcher for dir that calls handler for each settled package.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watcher: nil handler")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("watcher: " + dir + " is not a directory")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      abs,
		handler:  handler,
		debounce: DefaultDebounce,
		log:      logging.Get("watcher"),
		watcher:  fsw,
		timers:   make(map[string]*time.Timer),
	}
	WithExtensions(DefaultExtensions...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Accepts reports whether name has a handled extension.
func (w *Watcher) Accepts(name string) bool {
	return w.exts[strings.ToLower(filepath.Ext(name))]
}

// Run watches until ctx is cancelled, then waits for running handlers and
// closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching", "dir", w.dir, "debounce", w.debounce)

	if w.initial {
		w.scanExisting(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("initial scan failed", "dir", w.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() && w.Accepts(e.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.Accepts(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}

	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.fire(ctx, path, t)
	})
	w.timers[path] = t
}

func (w *Watcher) fire(ctx context.Context, path string, t *time.Timer) {
	w.mu.Lock()
	if w.timers[path] == t {
		delete(w.timers, path)
	}
	closed := w.closed
	w.mu.Unlock()

	if closed || ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	w.log.Info("package ready", "path", path, "bytes", info.Size())
	if err := w.handler(ctx, path); err != nil {
		w.log.Error("handler failed", "path", path, "error", err)
	}
}

// Close stops pending timers, waits for running handlers and releases the
// fsnotify watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.watcher.Close()
}
