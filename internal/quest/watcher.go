package quest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lawnchairsociety/questengine/internal/logger"
)

// reloadDebounce is how long the watcher waits after the last change
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the catalog from dir whenever a YAML file in it changes.
// onReload runs after each successful reload with the new quest count.
// A reload that fails to parse keeps the previous contents.
// Watch returns once the watcher is running; it stops when ctx is done.
func (c *Catalog) Watch(ctx context.Context, dir string, onReload func(*Catalog)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	reload := func() {
		if err := c.LoadFromDirectory(dir); err != nil {
			logger.Warning("Catalog reload failed, keeping previous quests", "dir", dir, "error", err)
			return
		}
		for _, problem := range c.Validate() {
			logger.Warning("Catalog problem", "problem", problem)
		}
		logger.Info("Catalog reloaded", "dir", dir, "quests", c.Count())
		if onReload != nil {
			onReload(c)
		}
	}

	go func() {
		defer watcher.Close()
		var debounceTimer *time.Timer

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isYAMLFile(filepath.Base(event.Name)) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				// Editors often write a file in several steps
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(reloadDebounce, reload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warning("Catalog watcher error", "error", err)

			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()

	return nil
}
