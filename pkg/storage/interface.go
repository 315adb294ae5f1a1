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

// Package storage defines the raw persistence layer used by key stores to
// hold private key material. Implementations live in the memory and file
// subpackages and share the Backend interface.
package storage

import (
	"io/fs"
)

// Backend stores opaque key material under string keys.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	// The returned slice is owned by the caller.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key, replacing and clearing any
	// previous value.
	Put(key string, value []byte, opts *Options) error

	// Delete clears and removes the value for the given key.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns all keys with the given prefix in sorted order.
	List(prefix string) ([]string, error)

	// Exists checks if a key exists in storage.
	Exists(key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Options contains optional parameters for Put.
type Options struct {
	// Permissions overrides the file mode for file-based backends.
	Permissions fs.FileMode
}

// DefaultOptions returns Options with owner read/write permissions.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600,
	}
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}
