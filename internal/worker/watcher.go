package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchDefinitions wakes the worker up when the SLO file is written. The
// reload itself still depends on the file modification time.
func (w *Worker) WatchDefinitions(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fail to create SLO file watcher: %w", err)
	}
	path := w.definitions.Path()
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return fmt.Errorf("fail to watch %s: %w", path, err)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.logger.Debug(fmt.Sprintf("SLO file event %s", event.Op.String()))
				w.Wake()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error(fmt.Sprintf("SLO file watcher error: %s", err.Error()))
			}
		}
	}()
	return nil
}
