// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	clock := NewFakeClock(testStart)
	var order []string
	clock.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	clock.AfterFunc(time.Second, func() { order = append(order, "a") })
	stopped := clock.AfterFunc(2*time.Second, func() { order = append(order, "x") })
	clock.AfterFunc(2*time.Second, func() {
		order = append(order, "b")
		clock.AfterFunc(500*time.Millisecond, func() { order = append(order, "b2") })
	})
	require.True(t, stopped.Stop())
	require.False(t, stopped.Stop())

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "b2", "c"}, order)
	assert.Equal(t, testStart.Add(5*time.Second), clock.Now())
	assert.Zero(t, clock.Pending())
}

func TestWatchdog_ArmReplacesPendingDeadline(t *testing.T) {
	clock := NewFakeClock(testStart)
	var fired []uint64
	w := newWatchdog(clock, time.Minute, func(gen uint64) { fired = append(fired, gen) })

	w.Arm()
	clock.Advance(30 * time.Second)
	second := w.Arm()
	assert.Equal(t, 1, clock.Pending(), "only one deadline may be pending")

	clock.Advance(45 * time.Second)
	assert.Empty(t, fired)

	clock.Advance(15 * time.Second)
	assert.Equal(t, []uint64{second}, fired)
	assert.False(t, w.Armed())
}

func TestWatchdog_Stop(t *testing.T) {
	clock := NewFakeClock(testStart)
	fired := false
	w := newWatchdog(clock, time.Minute, func(uint64) { fired = true })

	w.Arm()
	require.True(t, w.Armed())
	w.Stop()
	assert.False(t, w.Armed())
	clock.Advance(time.Hour)
	assert.False(t, fired)
}

func TestWatchdog_StaleCallbackIsDiscarded(t *testing.T) {
	// A real timer whose callback is already running when Arm is called must
	// not fire for the old generation.
	clock := NewFakeClock(testStart)
	var fired []uint64
	w := newWatchdog(clock, time.Minute, func(gen uint64) { fired = append(fired, gen) })

	first := w.Arm()
	w.Arm()
	assert.False(t, w.current(first))
	assert.Empty(t, fired)
}

func TestFileWatcher_ReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	var changes atomic.Int32

	fw, err := NewFileWatcher(path, 20*time.Millisecond, func() { changes.Add(1) }, discardLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Watch())
	defer fw.Close()

	backend := NewFileBackend(path)
	require.NoError(t, backend.Write(context.Background(), []byte("{}"), time.Hour))
	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	before := changes.Load()
	require.NoError(t, backend.Delete(context.Background()))
	require.Eventually(t, func() bool { return changes.Load() > before }, 2*time.Second, 10*time.Millisecond)
}
