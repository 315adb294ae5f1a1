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

// Package certinfo defines the read-only view over a decoded certificate
// bundle and its in-memory implementation.
//
// Info is the capability set shared by every producer of a bundle. Callers
// should depend on Info rather than on the concrete type that produced it:
// *Bundle is the live in-memory variant and certcache.Handle is the variant
// backed by a cache file.
package certinfo

import (
	"crypto"
	"crypto/x509"
)

// Info is a read-only view over a certificate bundle. Sequence accessors
// return a new slice on every call, always with the same elements in the
// same order.
type Info interface {
	// Certificate returns the leaf certificate.
	Certificate() *x509.Certificate

	// Chain returns every certificate other than the leaf in container order.
	Chain() []*x509.Certificate

	// Collection returns all certificates in container order.
	Collection() []*x509.Certificate

	// CommonName returns the leaf subject common name, or nil if it has none.
	CommonName() *Identifier

	// PrivateKey returns the private key, or nil if the bundle has none.
	PrivateKey() crypto.PrivateKey

	// SanNames returns the subject alternative names of the leaf.
	SanNames() []Identifier
}
