package config

import (
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roelfdiedericks/ctxproxy/internal/providers"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches the provider seed file for changes and hot-reloads the
// live registry: added, removed, and updated providers are diffed and
// logged individually rather than restarting the process.
type Watcher struct {
	fsw        *fsnotify.Watcher
	path       string
	registry   *providers.Registry
	debounce   time.Duration
	stopCh     chan struct{}
	mu         sync.Mutex
	pendingRun *time.Timer
}

// NewWatcher watches path (a provider seed TOML file) and applies diffs
// to registry whenever it changes on disk.
func NewWatcher(path string, registry *providers.Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		fsw:      fsw,
		path:     path,
		registry: registry,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop stops watching and releases the underlying inotify handle.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.mu.Lock()
	if w.pendingRun != nil {
		w.pendingRun.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			L_warn("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pendingRun != nil {
		w.pendingRun.Stop()
	}
	w.pendingRun = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	seeds, err := loadProviderSeeds(w.path)
	if err != nil {
		L_error("config: failed to reload provider seeds", "path", w.path, "error", err)
		return
	}
	applyProviderDiff(w.registry, seeds)
}

// applyProviderDiff reconciles registry against seeds: providers present
// in seeds are added or updated, providers present in registry but no
// longer in seeds are removed. Each change is logged at info level.
func applyProviderDiff(registry *providers.Registry, seeds []providers.Provider) {
	seen := make(map[string]bool, len(seeds))
	for _, p := range seeds {
		seen[p.ID] = true
		if existing, ok := registry.Get(p.ID); ok {
			if reflect.DeepEqual(existing, p) {
				continue
			}
			registry.Add(p, false)
			L_info("config: provider updated via hot-reload", "id", p.ID)
		} else {
			registry.Add(p, false)
			L_info("config: provider added via hot-reload", "id", p.ID)
		}
	}

	for _, view := range registry.List() {
		if !seen[view.ID] {
			registry.Remove(view.ID)
			L_info("config: provider removed via hot-reload", "id", view.ID)
		}
	}
}
