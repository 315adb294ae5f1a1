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

package certinfo

import "errors"

var (
	// ErrNoCertificates is returned when a bundle is built from an empty collection.
	ErrNoCertificates = errors.New("certinfo: no certificates")

	// ErrNilCertificate is returned when a collection contains a nil certificate.
	ErrNilCertificate = errors.New("certinfo: nil certificate in collection")

	// ErrKeyMismatch is returned when the private key matches no certificate.
	ErrKeyMismatch = errors.New("certinfo: private key does not match any certificate")
)
