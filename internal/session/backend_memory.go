// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps the session in process memory. It is the ephemeral
// tier: the session disappears with the client.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryBackend returns an empty memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Read implements Backend.
func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, nil
	}
	return append([]byte(nil), b.data...), nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(ctx context.Context, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	return nil
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }
