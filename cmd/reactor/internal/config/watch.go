package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of events editors emit for one save.
const watchDebounce = 50 * time.Millisecond

// Watch calls onChange with the freshly loaded file each time path is
// written, created or renamed into place, until ctx is done. The
// directory is watched rather than the file so atomic saves are seen.
// Load errors are passed to onChange with a nil Config.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()

		debounce := time.NewTimer(0)
		<-debounce.C
		pending := false
		name := filepath.Clean(path)

		for {
			select {
			case <-ctx.Done():
				debounce.Stop()
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = true
				debounce.Reset(watchDebounce)

			case <-debounce.C:
				if !pending {
					continue
				}
				pending = false
				cfg, err := LoadFile(path)
				if err == nil {
					err = Validate(cfg)
				}
				if err != nil {
					onChange(nil, err)
					continue
				}
				onChange(cfg, nil)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onChange(nil, err)
			}
		}
	}()
	return nil
}
