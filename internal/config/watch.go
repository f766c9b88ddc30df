package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rokutools/rokuscan/internal/logging"
)

// DefaultWatchDebounce groups bursts of file events into one reload
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch calls onChange with freshly loaded settings whenever the file at path
// changes, until ctx is done. The containing directory is watched so atomic
// replacements are seen. Edits that fail to parse or validate are logged and
// skipped; deleting the file reverts to DefaultSettings.
func Watch(ctx context.Context, path string, onChange func(*Settings)) error {
	return watch(ctx, path, DefaultWatchDebounce, onChange)
}

func watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Settings)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve settings path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			pending = true
			timer.Reset(debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false

			settings, err := Load(absPath)
			if err != nil {
				logging.Warn("Ignoring invalid settings change",
					zap.String("path", absPath),
					zap.Error(err),
				)
				continue
			}
			logging.Debug("Settings reloaded", zap.String("path", absPath))
			onChange(settings)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}
