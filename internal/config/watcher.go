package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"netgate/internal/logging"
	"netgate/internal/permissions"
)

// debounce absorbs editor write bursts (truncate + write + rename) into a
// single reload.
const debounce = 250 * time.Millisecond

// Watch reloads the config file on change and swaps the new permission
// rules into the gate. Only the permissions section is hot; mode, manifest
// and logging changes need a restart. Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, gate *permissions.Gate) error {
	log := logging.Get(logging.CategoryConfig)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors that replace the file
	// break a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error: %v", err)

		case <-reload:
			cfg, err := Load(path)
			if err != nil {
				// Keep the running rules; a half-written or invalid file
				// must never drop permissions to defaults.
				log.Error("config reload failed, keeping current rules: %v", err)
				continue
			}
			gate.Replace(cfg.Permissions)
			log.Info("permission rules reloaded from %s", path)
		}
	}
}
