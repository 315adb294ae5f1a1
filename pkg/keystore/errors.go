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

package keystore

import "errors"

var (
	// ErrPolicyRejected is returned when a store cannot materialize a key
	// under its storage policy in the current context.
	ErrPolicyRejected = errors.New("keystore: storage policy rejected")

	// ErrKeyNotFound is returned when no key is registered under an id.
	ErrKeyNotFound = errors.New("keystore: key not found")

	// ErrInvalidKeyID is returned when a key id is empty.
	ErrInvalidKeyID = errors.New("keystore: invalid key id")

	// ErrUnsupportedKey is returned for key types that cannot be encoded as PKCS#8.
	ErrUnsupportedKey = errors.New("keystore: unsupported private key")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("keystore: closed")
)
