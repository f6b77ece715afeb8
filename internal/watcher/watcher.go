// Package watcher turns file changes under a pages directory into document events,
// using fsnotify with per-file debouncing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/pageindex/internal/fileid"
	"github.com/hyperjump/pageindex/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Handler receives document events. It is called from timer and watcher goroutines.
type Handler func(ctx context.Context, ev models.DocumentEvent)

// pending is a debounced event waiting to fire.
type pending struct {
	timer *time.Timer
	typ   models.EventType
}

// Watcher watches a pages directory and reports created, updated and deleted pages.
// Document ids are paths relative to the root, as produced by fileid.FromPath.
type Watcher struct {
	root      string
	accept    func(path string) bool
	recursive bool
	handle    Handler
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	pending   map[string]*pending
	ctx       context.Context
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before its event fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter restricts events to paths for which accept returns true.
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) { w.accept = accept }
}

// New creates a watcher for root. Hidden files and directories are always ignored.
func New(root string, recursive bool, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		root:      filepath.Clean(root),
		recursive: recursive,
		handle:    handle,
		debounce:  defaultDebounce,
		pending:   make(map[string]*pending),
		done:      make(chan struct{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start starts watching. It runs until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	if err := w.addTreeLocked(w.root); err != nil {
		_ = watcher.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Bool("recursive", w.recursive))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !inDir(w.root, path) || hidden(w.root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if ev.Op.Has(fsnotify.Create) {
				w.handleNewDirectory(path)
			}
			return
		}
		typ := models.EventUpdated
		if ev.Op.Has(fsnotify.Create) {
			typ = models.EventCreated
		}
		w.schedule(path, typ)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.schedule(path, models.EventDeleted)
	}
}

// handleNewDirectory watches a directory created under the root and reports the pages
// already inside it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil || !w.recursive {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !hidden(w.root, path) {
			w.schedule(path, models.EventCreated)
		}
		return nil
	})
}

// schedule debounces an event for path. A pending create survives a following write
// so the handler sees the page as created.
func (w *Watcher) schedule(path string, typ models.EventType) {
	if typ != models.EventDeleted && w.accept != nil && !w.accept(path) {
		return
	}
	id, err := fileid.FromPath(w.root, path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		if p.typ == models.EventCreated && typ == models.EventUpdated {
			typ = models.EventCreated
		}
	}
	p := &pending{typ: typ}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.pending[path] != p {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()

		w.logger.Debug("watcher emitting event", zap.String("type", string(p.typ)), zap.String("document_id", id))
		if w.handle != nil {
			w.handle(ctx, models.DocumentEvent{Type: p.typ, DocumentID: id})
		}
	})
	w.pending[path] = p
}

func (w *Watcher) addTreeLocked(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hidden reports whether any element of path below root starts with a dot.
func hidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Stop stops the watcher and drops pending events.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
