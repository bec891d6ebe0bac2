package recordings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

const (
	defaultPollInterval = time.Second
	debounceWindow      = 200 * time.Millisecond
	settleTime          = 100 * time.Millisecond
)

// Store is where loaded recordings go
type Store interface {
	Put(r *timeline.Recording) (bool, error)
	Remove(name string) bool
}

// Watcher keeps a store in sync with the recording files in a directory.
// It uses fsnotify and falls back to polling when fsnotify is unavailable.
type Watcher struct {
	dir          string
	store        Store
	world        *world.World
	dispatcher   timeline.Dispatcher
	pollInterval time.Duration
	log          zerolog.Logger

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu      sync.Mutex
	pending map[string]time.Time // path -> first seen
	loaded  map[string]loadedFile
	started bool
	stopped bool
}

type loadedFile struct {
	name    string
	modTime time.Time
}

// NewWatcher creates a watcher for dir. A zero pollInterval uses one second.
func NewWatcher(dir string, store Store, w *world.World, d timeline.Dispatcher, pollInterval time.Duration) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("recordings directory cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("recording store cannot be nil")
	}
	if pollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be >= 0")
	}
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	return &Watcher{
		dir:          dir,
		store:        store,
		world:        w,
		dispatcher:   d,
		pollInterval: pollInterval,
		log:          logger.With("recordings"),
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
		pending:      make(map[string]time.Time),
		loaded:       make(map[string]loadedFile),
	}, nil
}

// Start loads every recording file in the directory and then watches it
func (rw *Watcher) Start() error {
	rw.mu.Lock()
	if rw.stopped {
		rw.mu.Unlock()
		return fmt.Errorf("watcher has been stopped")
	}
	if rw.started {
		rw.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	rw.started = true
	rw.mu.Unlock()

	rw.scan()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		rw.log.Warn().Err(err).Str("dir", rw.dir).Msg("Failed to create fsnotify watcher, falling back to polling")
	} else if err := watcher.Add(rw.dir); err != nil {
		rw.log.Warn().Err(err).Str("dir", rw.dir).Msg("Failed to watch recordings directory, falling back to polling")
		_ = watcher.Close()
		watcher = nil
	}
	rw.fsnotifyWatcher = watcher

	go rw.run()

	rw.log.Info().
		Str("dir", rw.dir).
		Bool("using_fsnotify", rw.fsnotifyWatcher != nil).
		Int("loaded", rw.Loaded()).
		Msg("Recording watcher started")
	return nil
}

// Stop stops watching. Loaded recordings stay in the store.
func (rw *Watcher) Stop() {
	rw.mu.Lock()
	if rw.stopped {
		rw.mu.Unlock()
		return
	}
	rw.stopped = true
	started := rw.started
	rw.mu.Unlock()

	close(rw.stopChan)
	if !started {
		return
	}

	if rw.fsnotifyWatcher != nil {
		if err := rw.fsnotifyWatcher.Close(); err != nil {
			rw.log.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
	}
	<-rw.watchDone

	rw.log.Debug().Str("dir", rw.dir).Msg("Recording watcher stopped")
}

// Loaded returns how many files are currently loaded
func (rw *Watcher) Loaded() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.loaded)
}

func (rw *Watcher) run() {
	defer close(rw.watchDone)

	if rw.fsnotifyWatcher != nil {
		rw.watchEvents()
	} else {
		rw.poll()
	}
}

func (rw *Watcher) watchEvents() {
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-rw.stopChan:
			return
		case event, ok := <-rw.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if !IsRecordingFile(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				rw.mu.Lock()
				if _, exists := rw.pending[event.Name]; !exists {
					rw.pending[event.Name] = time.Now()
				}
				rw.mu.Unlock()
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				rw.unload(event.Name)
			}
		case err, ok := <-rw.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			rw.log.Warn().Err(err).Msg("fsnotify error, continuing")
		case <-ticker.C:
			rw.processPending()
		}
	}
}

func (rw *Watcher) poll() {
	ticker := time.NewTicker(rw.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rw.stopChan:
			return
		case <-ticker.C:
			rw.scan()
		}
	}
}

// processPending loads files that have had time to finish writing
func (rw *Watcher) processPending() {
	rw.mu.Lock()
	ready := make([]string, 0, len(rw.pending))
	for path, firstSeen := range rw.pending {
		if time.Since(firstSeen) < settleTime {
			continue
		}
		ready = append(ready, path)
		delete(rw.pending, path)
	}
	rw.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rw.load(path)
	}
}

// scan loads new and changed files and unloads files that are gone
func (rw *Watcher) scan() {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		rw.log.Warn().Err(err).Str("dir", rw.dir).Msg("Failed to read recordings directory")
		return
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsRecordingFile(entry.Name()) {
			continue
		}
		path := filepath.Join(rw.dir, entry.Name())
		present[path] = true

		info, err := entry.Info()
		if err != nil {
			continue
		}
		rw.mu.Lock()
		prev, ok := rw.loaded[path]
		rw.mu.Unlock()
		if ok && prev.modTime.Equal(info.ModTime()) {
			continue
		}
		rw.load(path)
	}

	rw.mu.Lock()
	var gone []string
	for path := range rw.loaded {
		if !present[path] {
			gone = append(gone, path)
		}
	}
	rw.mu.Unlock()

	for _, path := range gone {
		rw.unload(path)
	}
}

func (rw *Watcher) load(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	rec, err := LoadFile(path, rw.world, rw.dispatcher)
	if err != nil {
		// keep whatever was loaded before
		rw.log.Warn().Err(err).Str("file", path).Msg("Failed to load recording")
		return
	}

	replaced, err := rw.store.Put(rec)
	if err != nil {
		rw.log.Warn().Err(err).Str("file", path).Msg("Failed to register recording")
		return
	}

	rw.mu.Lock()
	prev, hadPrev := rw.loaded[path]
	rw.loaded[path] = loadedFile{name: rec.Name(), modTime: info.ModTime()}
	renamed := hadPrev && prev.name != rec.Name() && !rw.nameInUseLocked(prev.name)
	rw.mu.Unlock()

	if renamed {
		rw.store.Remove(prev.name)
	}

	rw.log.Info().
		Str("file", filepath.Base(path)).
		Str("recording", rec.Name()).
		Bool("replaced", replaced).
		Int("end_tick", timeline.MaxEndTick(rec)).
		Msg("Recording loaded")
}

func (rw *Watcher) unload(path string) {
	rw.mu.Lock()
	delete(rw.pending, path)
	lf, ok := rw.loaded[path]
	delete(rw.loaded, path)
	inUse := ok && rw.nameInUseLocked(lf.name)
	rw.mu.Unlock()

	if !ok || inUse {
		return
	}
	if rw.store.Remove(lf.name) {
		rw.log.Info().Str("file", filepath.Base(path)).Str("recording", lf.name).Msg("Recording unloaded")
	}
}

// nameInUseLocked reports whether another loaded file provides name
func (rw *Watcher) nameInUseLocked(name string) bool {
	for _, lf := range rw.loaded {
		if lf.name == name {
			return true
		}
	}
	return false
}
