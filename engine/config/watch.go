package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/alphavid/common"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it is written or replaced and hands the result to fn.
// A reload that fails is passed to fn with the error so the caller can keep its current config.
// The directory is watched rather than the file so that editors which save by rename are seen.
// Watch blocks until ctx is done.
//
// Parameters:
//   - ctx: stops the watch
//   - path: the config file
//   - fn: receives each reload
//
// Returns:
//   - error: an error if the watcher cannot be started, otherwise nil once ctx is done
func Watch(ctx context.Context, path string, fn func(RenderConfig, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
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
			cfg, err := Load(abs)
			if err != nil {
				common.Logger().Warn("config reload failed", "path", abs, "err", err)
			} else {
				common.Logger().Info("config reloaded", "path", abs)
			}
			fn(cfg, err)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			common.Logger().Warn("config watcher error", "err", err)
		}
	}
}
