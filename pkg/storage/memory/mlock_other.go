// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certcache.
//
// go-certcache is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

//go:build !(linux || darwin || freebsd)

package memory

import "errors"

var errLockUnsupported = errors.New("memory locking is not supported on this platform")

func lockedAlloc(n int) ([]byte, error) {
	return nil, errLockUnsupported
}

func lockedFree(b []byte) {
	clear(b)
}
