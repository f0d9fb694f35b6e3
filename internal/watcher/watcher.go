// Package watcher maps filesystem changes under a project root to reactions.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// Binding reacts to changes of the paths it matches. Paths are slash separated and
// relative to the watched root.
type Binding struct {
	Name  string
	Match func(rel string) bool
	React func(ctx context.Context, rel string)
}

type binding struct {
	Binding

	mu    sync.Mutex
	timer *time.Timer
	last  string
}

type Watcher struct {
	root   string
	delay  time.Duration
	ignore []string
	fsw    *fsnotify.Watcher

	mu       sync.RWMutex
	bindings []*binding
}

// New watches root recursively. Events of one binding arriving within delay of each other
// are coalesced into a single reaction. Ignored entries are slash separated paths relative
// to root, their whole subtree is skipped.
func New(root string, delay time.Duration, ignore ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &Watcher{root: root, delay: delay, fsw: fsw}
	for _, ig := range ignore {
		ig = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(ig)), "./")
		if ig != "" && ig != "." {
			w.ignore = append(w.ignore, ig)
		}
	}

	if err := w.addDirsRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Add(b Binding) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bindings = append(w.bindings, &binding{Binding: b})
}

// Run dispatches events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			tlogger.Warn("msg", "watch error", "err", err)
		}
	}
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) stop() {
	w.fsw.Close()
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, b := range w.bindings {
		b.mu.Lock()
		if b.timer != nil {
			b.timer.Stop()
		}
		b.mu.Unlock()
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) || shouldIgnoreEvent(ev.Name) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(ev.Name)
			return
		}
	}

	tlogger.Debug("msg", "Detected change", "path", rel, "op", ev.Op.String())

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, b := range w.bindings {
		if b.Match(rel) {
			w.schedule(ctx, b, rel)
		}
	}
}

// schedule restarts the binding's quiet period. The reaction sees the last changed path.
func (w *Watcher) schedule(ctx context.Context, b *binding, rel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = rel
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(w.delay, func() {
		if ctx.Err() != nil {
			return
		}
		b.mu.Lock()
		path := b.last
		b.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				tlogger.Error("watch", b.Name, "msg", "reaction panicked", "err", r)
			}
		}()
		tlogger.Info("watch", b.Name, "msg", "Change detected", "path", path)
		b.React(ctx, path)
	})
}

func (w *Watcher) ignored(rel string) bool {
	for _, ig := range w.ignore {
		if rel == ig || strings.HasPrefix(rel, ig+"/") {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(w.root, path); err == nil && rel != "." && w.ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			tlogger.Warn("msg", "watch add failed", "dir", path, "err", err)
		}
		return nil
	})
}

// shouldIgnoreEvent skips hidden files, which includes the temporary files of atomic
// writes, and editor swap files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasPrefix(base, "#") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx")
}
