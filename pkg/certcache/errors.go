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

package certcache

import "errors"

var (
	// ErrRegistryClosed is returned when using a closed Registry.
	ErrRegistryClosed = errors.New("certcache: registry closed")

	// ErrNotCached is returned when no handle is cached for a path.
	ErrNotCached = errors.New("certcache: not cached")

	// ErrNoPrivateKey is returned when a TLS certificate is requested from a
	// handle without a private key.
	ErrNoPrivateKey = errors.New("certcache: no private key")
)
