package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CTAG07/acfget/pkg/fixture"
	"github.com/CTAG07/acfget/pkg/templating"
)

// FixtureWatcher reloads the fixture source when its file changes and swaps
// it into the engine. A fixture that fails to parse keeps the previous one
// in service.
type FixtureWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	engine  *templating.Engine
	logger  *slog.Logger

	mu      sync.Mutex
	reloads int
}

// NewFixtureWatcher watches the directory holding path, so editors that
// replace the file on save are seen too.
func NewFixtureWatcher(path string, engine *templating.Engine, logger *slog.Logger) (*FixtureWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return &FixtureWatcher{
		watcher: fsWatcher,
		path:    filepath.Clean(path),
		engine:  engine,
		logger:  logger,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher. A
// burst of events for the fixture triggers one reload once it goes quiet.
func (w *FixtureWatcher) Run(ctx context.Context) {
	const debounce = 100 * time.Millisecond
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	w.logger.Info("Watching fixture for changes", "path", w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Fixture watcher error", "error", err)
		}
	}
}

func (w *FixtureWatcher) reload() {
	s, err := fixture.Load(w.path)
	if err != nil {
		w.logger.Error("Fixture reload failed, keeping previous data", "path", w.path, "error", err)
		return
	}
	w.engine.SetSource(s)

	w.mu.Lock()
	w.reloads++
	n := w.reloads
	w.mu.Unlock()
	w.logger.Info("Fixture reloaded", "path", w.path, "reloads", n)
}

// Reloads reports how many successful reloads have happened.
func (w *FixtureWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
