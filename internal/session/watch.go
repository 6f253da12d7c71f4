// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an atomic rename
// produces.
const DefaultWatchDebounce = 150 * time.Millisecond

// =============================================================================
// DURABLE TIER WATCHER
// =============================================================================

// FileWatcher reports changes to the durable session file made by other
// processes, such as `educagestao logout` in a second terminal. The parent
// directory is watched because atomic writes replace the file.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFileWatcher creates a watcher for path. onChange runs on the watcher's
// goroutine after each debounced burst of changes.
func NewFileWatcher(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*FileWatcher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		path:     filepath.Clean(path),
		watcher:  watcher,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching.
func (fw *FileWatcher) Watch() error {
	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(fw.path), err)
	}
	go fw.processEvents()
	return nil
}

// Close stops watching and releases resources.
func (fw *FileWatcher) Close() error {
	fw.cancel()
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	return fw.watcher.Close()
}

func (fw *FileWatcher) processEvents() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				fw.schedule()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("session_watch_error", slog.Any("error", err))
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		if fw.ctx.Err() == nil {
			fw.onChange()
		}
	})
}
