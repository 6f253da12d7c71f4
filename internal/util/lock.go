// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "sync"

// localLock serializes LockFile callers on platforms without flock.
var localLock sync.Mutex
