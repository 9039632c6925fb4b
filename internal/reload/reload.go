// Package reload hot-swaps a Predictor handle when its backing model file
// changes on disk: an fsnotify watch with a debounced-event loop that
// reloads the model and swaps an atomically-held pointer, so readers never
// observe a half-loaded handle.
package reload

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/screenager/fasttext/internal/fasttext"
	"github.com/screenager/fasttext/internal/ftio"
)

// Watcher reloads a model from path whenever the file changes, publishing
// the new handle atomically so concurrent readers always see a complete,
// ready-to-use Predictor.
type Watcher struct {
	fw      *fsnotify.Watcher
	path    string
	current atomic.Pointer[fasttext.Predictor]
	loadFn  func(string) (*fasttext.Predictor, error)
}

// New opens path with loadFn (LoadModel or OpenMemoryMapped) and begins
// watching its parent directory for writes.
func New(path string, loadFn func(string) (*fasttext.Predictor, error)) (*Watcher, error) {
	p, err := loadFn(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		p.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{fw: fw, path: path, loadFn: loadFn}
	w.current.Store(p)
	return w, nil
}

// Current returns the presently active Predictor. Safe to call
// concurrently with Watch's reload swaps.
func (w *Watcher) Current() *fasttext.Predictor { return w.current.Load() }

// Watch blocks processing fsnotify events until done is closed, debouncing
// rapid writes to path before reloading.
func (w *Watcher) Watch(done <-chan struct{}) error {
	var pending *time.Timer
	for {
		select {
		case <-done:
			return w.fw.Close()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, w.reload)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			ftio.Warnf("reload watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := w.loadFn(w.path)
	if err != nil {
		ftio.Warnf("reload %s failed, keeping previous handle: %v", w.path, err)
		return
	}
	old := w.current.Swap(next)
	ftio.Infof("reloaded model %s", w.path)
	if old != nil {
		old.Close()
	}
}

// Close stops the watcher and releases the active Predictor.
func (w *Watcher) Close() error {
	if p := w.current.Load(); p != nil {
		p.Close()
	}
	return w.fw.Close()
}
