// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle coalesces the burst of events editors produce for one save.
const watchSettle = 100 * time.Millisecond

// Watch reloads the config file at path whenever it is written or replaced
// and passes the result to onChange. A file that fails to load is reported
// through err and the previous configuration stays in effect for the caller.
//
// Watch blocks until ctx is cancelled. The parent directory is watched so
// that atomic rename-over saves are seen.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var settle *time.Timer
	var fire <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(watchSettle)
			} else {
				settle.Reset(watchSettle)
			}
			fire = settle.C

		case <-fire:
			fire = nil
			cfg, err := LoadFromPath(abs)
			onChange(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("watch error: %w", err))
		}
	}
}
