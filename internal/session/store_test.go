// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/storage"
)

var testStart = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(role security.Role, persistent bool, now time.Time) *Session {
	return &Session{
		ID:          newSessionID(),
		UserID:      "7",
		Name:        "Maria",
		Email:       "maria@escola.com",
		Role:        role,
		Permissions: security.PermissionsFor(role),
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTLFor(persistent)),
		Persistent:  persistent,
	}
}

func newMemoryStore(clock Clock) (*TieredStore, *MemoryBackend, *MemoryBackend) {
	durable, ephemeral := NewMemoryBackend(), NewMemoryBackend()
	return NewTieredStore(durable, ephemeral, WithStoreClock(clock), WithStoreLogger(discardLogger())), durable, ephemeral
}

func readBytes(t *testing.T, b Backend) []byte {
	t.Helper()
	data, err := b.Read(context.Background())
	require.NoError(t, err)
	return data
}

// =============================================================================
// SESSION RECORD TESTS
// =============================================================================

func TestSession_IDFormat(t *testing.T) {
	id := newSessionID()
	assert.Regexp(t, `^sess_[0-9a-f]{32}$`, id)
	assert.NotEqual(t, id, newSessionID())
}

func TestSession_Validate(t *testing.T) {
	valid := testSession(security.RoleTeacher, false, testStart)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(s *Session)
	}{
		{"missing id", func(s *Session) { s.ID = "" }},
		{"missing user", func(s *Session) { s.UserID = "" }},
		{"zero created", func(s *Session) { s.CreatedAt = time.Time{} }},
		{"expiry before creation", func(s *Session) { s.ExpiresAt = s.CreatedAt.Add(-time.Second) }},
		{"ephemeral lifetime too long", func(s *Session) { s.ExpiresAt = s.CreatedAt.Add(EphemeralTTL + time.Second) }},
		{"extra permission", func(s *Session) { s.Permissions = append(s.Permissions, "delete_alunos") }},
		{"wildcard on teacher", func(s *Session) { s.Permissions = []security.Permission{security.PermAll} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid.Clone()
			tt.mutate(s)
			require.ErrorIs(t, s.Validate(), security.ErrCorruptSession)
		})
	}
}

func TestSession_UnknownRoleKeepsDefault(t *testing.T) {
	s := testSession(security.RoleUnknown, false, testStart)
	require.NoError(t, s.Validate())

	data, err := encode(s)
	require.NoError(t, err)
	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, []security.Permission{security.PermViewDashboard}, got.Permissions)
}

func TestSession_DecodeRejectsGarbage(t *testing.T) {
	for _, data := range []string{"{", "null", `{"id":"x"}`, `{"role":"root"}`} {
		_, err := decode([]byte(data))
		require.ErrorIs(t, err, security.ErrCorruptSession, data)
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := testSession(security.RoleCoordinator, false, testStart)
	c := s.Clone()
	c.Permissions[0] = "tampered"
	assert.NotEqual(t, security.Permission("tampered"), s.Permissions[0])
	assert.Nil(t, (*Session)(nil).Clone())
}

func TestSession_Info(t *testing.T) {
	s := testSession(security.RoleTeacher, false, testStart)
	info := s.Info(testStart.Add(30 * time.Minute))

	assert.Equal(t, "teacher", info.Role)
	assert.Equal(t, "Professor", info.RoleTitle)
	assert.Equal(t, "ephemeral", info.Tier)
	assert.Equal(t, 90*time.Minute, info.Remaining)
	assert.Contains(t, info.RemainingAt, "from now")
	assert.Equal(t, "2m0s", info.Inactivity)

	expired := s.Info(testStart.Add(3 * time.Hour))
	assert.Equal(t, time.Duration(0), expired.Remaining)
	assert.Contains(t, expired.RemainingAt, "ago")

	durable := testSession(security.RoleAdmin, true, testStart).Info(testStart)
	assert.Equal(t, "durable", durable.Tier)
	assert.Empty(t, durable.Inactivity)
}

// =============================================================================
// TIERED STORE TESTS
// =============================================================================

func TestTieredStore_SaveSelectsTier(t *testing.T) {
	clock := NewFakeClock(testStart)
	store, durable, ephemeral := newMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(security.RoleTeacher, false, testStart)))
	assert.Nil(t, readBytes(t, durable))
	assert.NotNil(t, readBytes(t, ephemeral))

	require.NoError(t, store.Save(ctx, testSession(security.RoleTeacher, true, testStart)))
	assert.NotNil(t, readBytes(t, durable))
	assert.Nil(t, readBytes(t, ephemeral), "saving durable must empty the ephemeral tier")
}

func TestTieredStore_LoadPrefersDurable(t *testing.T) {
	clock := NewFakeClock(testStart)
	store, durable, ephemeral := newMemoryStore(clock)
	ctx := context.Background()

	persistent := testSession(security.RoleAdmin, true, testStart)
	transient := testSession(security.RoleTeacher, false, testStart)
	d, err := encode(persistent)
	require.NoError(t, err)
	e, err := encode(transient)
	require.NoError(t, err)
	require.NoError(t, durable.Write(ctx, d, time.Hour))
	require.NoError(t, ephemeral.Write(ctx, e, time.Hour))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistent.ID, got.ID)
}

func TestTieredStore_CorruptRecordIsPurged(t *testing.T) {
	clock := NewFakeClock(testStart)
	store, durable, ephemeral := newMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, durable.Write(ctx, []byte("{not json"), time.Hour))
	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, readBytes(t, durable))

	// A corrupt record clears both tiers, even next to a valid one.
	valid := testSession(security.RoleSecretary, false, testStart)
	data, err := encode(valid)
	require.NoError(t, err)
	require.NoError(t, durable.Write(ctx, []byte(`{"id":"x","role":"admin","permissions":["all"]}`), time.Hour))
	require.NoError(t, ephemeral.Write(ctx, data, time.Hour))

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, readBytes(t, durable))
	assert.Nil(t, readBytes(t, ephemeral))
}

// downBackend fails every read, like an unreachable redis.
type downBackend struct{ deleted int }

func (b *downBackend) Read(context.Context) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (b *downBackend) Write(context.Context, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (b *downBackend) Delete(context.Context) error { b.deleted++; return nil }
func (b *downBackend) Name() string                 { return "down" }

func TestTieredStore_DurableReadErrorFallsThrough(t *testing.T) {
	clock := NewFakeClock(testStart)
	ephemeral := NewMemoryBackend()
	store := NewTieredStore(&downBackend{}, ephemeral, WithStoreClock(clock), WithStoreLogger(discardLogger()))
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoSession)

	valid := testSession(security.RoleTeacher, false, testStart)
	data, err := encode(valid)
	require.NoError(t, err)
	require.NoError(t, ephemeral.Write(ctx, data, time.Hour))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, valid.ID, got.ID)
}

func TestTieredStore_TierFlagMismatchIsCorrupt(t *testing.T) {
	clock := NewFakeClock(testStart)
	store, durable, _ := newMemoryStore(clock)
	ctx := context.Background()

	data, err := encode(testSession(security.RoleTeacher, false, testStart))
	require.NoError(t, err)
	require.NoError(t, durable.Write(ctx, data, time.Hour))

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, readBytes(t, durable))
}

func TestTieredStore_ClearIsIdempotent(t *testing.T) {
	clock := NewFakeClock(testStart)
	store, durable, ephemeral := newMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession(security.RoleAdmin, true, testStart)))
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	assert.Nil(t, readBytes(t, durable))
	assert.Nil(t, readBytes(t, ephemeral))
}

func TestTieredStore_RefusesExpiredSave(t *testing.T) {
	clock := NewFakeClock(testStart.Add(3 * time.Hour))
	store, _, _ := newMemoryStore(clock)
	require.Error(t, store.Save(context.Background(), testSession(security.RoleAdmin, false, testStart)))
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
	require.NoError(t, b.Delete(ctx), "deleting an empty slot")

	require.NoError(t, b.Write(ctx, []byte(`{"a":1}`), time.Hour))
	require.NoError(t, b.Write(ctx, []byte(`{"b":2}`), time.Hour))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(data), "writes overwrite, never merge")

	require.NoError(t, b.Delete(ctx))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	b := NewFileBackend(path)
	exerciseBackend(t, b)

	require.NoError(t, b.Write(context.Background(), []byte("{}"), time.Hour))
	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestSQLiteBackend(t *testing.T) {
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "educagestao.db"), discardLogger())
	require.NoError(t, err)
	defer db.Close()

	exerciseBackend(t, NewSQLiteBackend(db, "current"))
}

func TestSQLiteBackend_ExpiredRowReadsEmpty(t *testing.T) {
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "educagestao.db"), discardLogger())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	b := NewSQLiteBackend(db, "current")
	require.NoError(t, b.Write(ctx, []byte("{}"), -time.Minute))

	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM session_store"))
	assert.Zero(t, n)
}

func TestTieredStore_FileAndMemoryRoundTrip(t *testing.T) {
	clock := NewFakeClock(time.Now())
	durable := NewFileBackend(filepath.Join(t.TempDir(), "session.json"))
	store := NewTieredStore(durable, NewMemoryBackend(), WithStoreClock(clock), WithStoreLogger(discardLogger()))
	ctx := context.Background()

	sess := testSession(security.RoleCoordinator, true, clock.Now())
	require.NoError(t, store.Save(ctx, sess))

	// A second store over the same file sees the remembered session.
	other := NewTieredStore(NewFileBackend(durable.Path()), NewMemoryBackend(), WithStoreLogger(discardLogger()))
	got, err := other.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Permissions, got.Permissions)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))
}
