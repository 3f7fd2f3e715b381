package config

import (
	"context"
	"path/filepath"

	"github.com/datametry/edr/metrics"
	"github.com/datametry/edr/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the reloaded Config each time the file at path is written or replaced.  The
// parent directory is watched so the file may be created after Watch starts and editors that save by
// rename are picked up.  A config that fails to load or validate is logged and skipped.  Watch returns
// when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Infof("Watching %s for changes", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				metrics.Errors.WithLabelValues(metrics.ReloadConfigError).Inc()
				logger.Errorf("Failed to reload %s, keeping previous config: %s", path, err)
				continue
			}

			logger.Infof("Reloaded config %s", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("Config watcher error: %s", err)
		}
	}
}
