package config

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ReloadWatcher watches btaudiod.conf and the two persisted JSON stores
// for out-of-band edits and fires onChange. Per §6, this only produces a
// notice event — adapter/profile/listen-address changes still require a
// restart to take effect.
type ReloadWatcher struct {
	log     *log.Logger
	watcher *fsnotify.Watcher
	paths   map[string]bool
	done    chan struct{}
}

// NewReloadWatcher starts watching the directories containing paths.
// Missing paths are tolerated; fsnotify fires on create too, so a file
// that doesn't exist yet is picked up once it does.
func NewReloadWatcher(logger *log.Logger, paths []string, onChange func(path string)) (*ReloadWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		tracked[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("config reload watch could not add directory", "dir", dir, "error", err)
		}
	}

	w := &ReloadWatcher{
		log:     logger.With("component", "config-watch"),
		watcher: watcher,
		paths:   tracked,
		done:    make(chan struct{}),
	}
	go w.run(onChange)
	return w, nil
}

func (w *ReloadWatcher) run(onChange func(path string)) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.paths[ev.Name] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				onChange(ev.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config reload watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *ReloadWatcher) Close() {
	close(w.done)
	w.watcher.Close()
}
