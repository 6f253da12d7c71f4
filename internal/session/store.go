// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoSession is returned by Store.Load when neither tier holds a valid
// session.
var ErrNoSession = errors.New("no session")

// Backend holds at most one encoded session.
type Backend interface {
	// Read returns the stored bytes, or nil when the slot is empty.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the slot. ttl is the remaining lifetime of the record;
	// backends with native expiry may use it.
	Write(ctx context.Context, data []byte, ttl time.Duration) error
	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context) error
	// Name identifies the backend in logs.
	Name() string
}

// Store persists the single active session.
type Store interface {
	// Save writes s to the tier selected by s.Persistent and empties the
	// other tier.
	Save(ctx context.Context, s *Session) error
	// Load returns the stored session, preferring the durable tier. Corrupt
	// records are purged and reported as ErrNoSession.
	Load(ctx context.Context) (*Session, error)
	// Clear empties both tiers.
	Clear(ctx context.Context) error
}

// TieredStore is a Store over a durable and an ephemeral backend.
type TieredStore struct {
	durable   Backend
	ephemeral Backend
	clock     Clock
	logger    *slog.Logger
}

// StoreOption configures a TieredStore.
type StoreOption func(*TieredStore)

// WithStoreClock sets the clock used to compute backend TTLs.
func WithStoreClock(c Clock) StoreOption {
	return func(s *TieredStore) {
		s.clock = c
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *TieredStore) {
		s.logger = l
	}
}

// NewTieredStore creates a store. durable survives restarts; ephemeral is
// scoped to the running client.
func NewTieredStore(durable, ephemeral Backend, opts ...StoreOption) *TieredStore {
	s := &TieredStore{
		durable:   durable,
		ephemeral: ephemeral,
		clock:     SystemClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Durable returns the durable backend.
func (s *TieredStore) Durable() Backend { return s.durable }

// Save implements Store.
func (s *TieredStore) Save(ctx context.Context, sess *Session) error {
	data, err := encode(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	target, other := s.ephemeral, s.durable
	if sess.Persistent {
		target, other = s.durable, s.ephemeral
	}

	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("refusing to save session %s: already expired", sess.ID)
	}
	if err := target.Write(ctx, data, ttl); err != nil {
		return fmt.Errorf("failed to write %s session: %w", target.Name(), err)
	}
	if err := other.Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear %s session: %w", other.Name(), err)
	}
	return nil
}

// Load implements Store. The durable tier wins when both hold a record.
// A durable read error is logged and the ephemeral tier is still consulted.
// A corrupt record in either tier clears both and yields ErrNoSession.
func (s *TieredStore) Load(ctx context.Context) (*Session, error) {
	tiers := []struct {
		backend    Backend
		persistent bool
	}{
		{s.durable, true},
		{s.ephemeral, false},
	}

	var readErr error
	for _, tier := range tiers {
		data, err := tier.backend.Read(ctx)
		if err != nil {
			s.logger.Warn("session_read_failed",
				slog.String("backend", tier.backend.Name()),
				slog.Any("error", err))
			readErr = errors.Join(readErr, fmt.Errorf("failed to read %s session: %w", tier.backend.Name(), err))
			continue
		}
		if data == nil {
			continue
		}

		sess, err := decode(data)
		if err == nil && sess.Persistent != tier.persistent {
			err = fmt.Errorf("tier flag does not match %s backend", tier.backend.Name())
		}
		if err != nil {
			s.logger.Warn("session_corrupt_purged",
				slog.String("backend", tier.backend.Name()),
				slog.Any("error", err))
			if clearErr := s.Clear(ctx); clearErr != nil {
				return nil, fmt.Errorf("failed to purge corrupt %s session: %w", tier.backend.Name(), clearErr)
			}
			return nil, ErrNoSession
		}
		return sess, nil
	}
	if readErr != nil {
		return nil, readErr
	}
	return nil, ErrNoSession
}

// Clear implements Store.
func (s *TieredStore) Clear(ctx context.Context) error {
	return errors.Join(s.durable.Delete(ctx), s.ephemeral.Delete(ctx))
}
