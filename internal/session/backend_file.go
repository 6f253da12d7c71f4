// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/educagestao/educagestao-tui/internal/util"
)

// FileBackend stores the session as a JSON file readable only by the user.
// Writes are atomic and serialized across processes with an advisory lock.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the session file path.
func (b *FileBackend) Path() string { return b.path }

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *FileBackend) Write(ctx context.Context, data []byte, ttl time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	unlock, err := util.LockFile(b.path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := util.AtomicWriteFile(b.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (b *FileBackend) Delete(ctx context.Context) error {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil
	}
	unlock, err := util.LockFile(b.path)
	if err != nil {
		return err
	}
	defer unlock()
	return util.RemoveIfExists(b.path)
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }
