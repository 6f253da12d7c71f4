// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// watchdog is a single rearmable deadline. Arm cancels any pending deadline
// before scheduling the next one; a callback from a cancelled deadline that
// already started is discarded by its generation number.
type watchdog struct {
	clock   Clock
	timeout time.Duration
	fire    func(gen uint64)

	// mu protects timer and gen.
	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func newWatchdog(clock Clock, timeout time.Duration, fire func(gen uint64)) *watchdog {
	return &watchdog{clock: clock, timeout: timeout, fire: fire}
}

// Arm (re)starts the deadline and returns its generation.
func (w *watchdog) Arm() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = w.clock.AfterFunc(w.timeout, func() {
		if w.current(gen) {
			w.fire(gen)
		}
	})
	return gen
}

// Stop cancels the pending deadline, if any.
func (w *watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

// Armed reports whether a deadline is pending.
func (w *watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timer != nil
}

// current reports whether gen is still the latest generation.
func (w *watchdog) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return false
	}
	w.timer = nil
	return true
}

// Generation returns the generation of the most recent Arm or Stop.
func (w *watchdog) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}
