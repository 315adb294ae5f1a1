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

// Package container imports password-protected PKCS#12 certificate
// containers from disk into certificate bundles.
//
// An import reads the file in full, decodes it and registers the private
// key, if any, with a keystore.KeyStore under that store's policy. Failures
// are returned as *ImportError classified by Kind; only
// KindStoragePolicyRejected can succeed when retried with another store.
package container

import (
	"github.com/jeremyhahn/go-certcache/pkg/certinfo"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// FileRef identifies a container file and the password protecting it.
// An empty password means the container is unprotected.
type FileRef struct {
	Path     string
	Password string
}

// String returns the path. The password is never included.
func (r FileRef) String() string {
	return r.Path
}

// Imported is the result of a successful import.
type Imported struct {
	// Bundle is the decoded certificate bundle.
	Bundle *certinfo.Bundle

	// KeyID is the id the private key was registered under, or empty when
	// the container holds no key.
	KeyID string

	// Policy is the storage policy of the store holding the key.
	Policy keystore.Policy
}

// Importer decodes a container file under the policy of the given store.
type Importer interface {
	Import(ref FileRef, store keystore.KeyStore) (*Imported, error)
}
