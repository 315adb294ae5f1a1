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

//go:build linux || darwin || freebsd

package memory

import (
	"golang.org/x/sys/unix"
)

// lockedAlloc maps n bytes of anonymous memory and pins it with mlock.
func lockedAlloc(n int) ([]byte, error) {
	size := n
	if size == 0 {
		size = 1
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	if err := unix.Mlock(buf); err != nil {
		_ = unix.Munmap(buf)
		return nil, err
	}
	return buf[:n], nil
}

// lockedFree zeroes, unlocks and unmaps a buffer from lockedAlloc.
func lockedFree(b []byte) {
	b = b[:cap(b)]
	clear(b)
	_ = unix.Munlock(b)
	_ = unix.Munmap(b)
}
