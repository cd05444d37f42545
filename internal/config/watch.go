package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// WatchSettings reloads path whenever it changes and passes the new settings
// to onChange. Editors often replace files instead of writing them, so the
// parent directory is watched. A file that fails to parse is logged and
// skipped. Blocks until ctx is cancelled.
func WatchSettings(ctx context.Context, path string, onChange func(*Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}
	slog.Debug("watching settings", "file", abs)

	var (
		mu      sync.Mutex
		pending *time.Timer
	)
	reload := func() {
		s, err := LoadSettings(abs)
		if err != nil {
			slog.Warn("settings reload failed", "file", abs, "error", err)
			return
		}
		slog.Info("settings reloaded", "file", abs)
		onChange(s)
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceDefault, func() {
				if ctx.Err() != nil {
					return
				}
				reload()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}
