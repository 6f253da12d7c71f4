// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix

package util

import (
	"fmt"
	"os"
)

// LockFile creates path+".lock" and returns a release function. Without
// flock the lock only serializes callers inside this process.
func LockFile(path string) (func(), error) {
	localLock.Lock()
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		localLock.Unlock()
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return func() {
		f.Close()
		localLock.Unlock()
	}, nil
}
