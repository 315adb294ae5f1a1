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

// Package certcache provides a cached, disk-backed view of a certificate
// bundle persisted to a PKCS#12 container file.
//
// A Handle is built once by New, which imports the container under the
// ephemeral storage policy and retries under the machine policy only when
// the ephemeral store rejects the key. Any other failure is returned
// unchanged and no second attempt is made. Once built, a Handle is
// read-only until Close.
//
// Registry keeps handles keyed by path for a cache manager that decides
// when entries are loaded and evicted.
package certcache

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-certcache/pkg/certinfo"
	"github.com/jeremyhahn/go-certcache/pkg/container"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// Handle pairs a container file reference with the bundle imported from it.
type Handle struct {
	ref    container.FileRef
	bundle *certinfo.Bundle
	policy keystore.Policy
	keyID  string
	store  keystore.KeyStore
	owned  []keystore.KeyStore

	mu     sync.RWMutex
	closed bool
}

var _ certinfo.Info = (*Handle)(nil)

// New imports the container identified by ref and returns a handle over the
// result. It fails only when the ephemeral import fails with an error other
// than a storage policy rejection, or when both imports fail.
func New(ref container.FileRef, opts ...Option) (*Handle, error) {
	o := newOptions(opts)

	imported, store, err := load(o.importer, ref, o.ephemeral, o.machine)
	if err != nil {
		o.closeOwned(nil)
		return nil, err
	}
	o.closeOwned(store)

	h := &Handle{
		ref:    ref,
		bundle: imported.Bundle,
		policy: imported.Policy,
		keyID:  imported.KeyID,
		store:  store,
	}
	if o.owns(store) {
		h.owned = []keystore.KeyStore{store}
	}
	return h, nil
}

// load runs the two-stage import. The machine store is tried only when the
// ephemeral attempt is rejected by its storage policy, and its result is
// final.
func load(imp container.Importer, ref container.FileRef, ephemeral, machine keystore.KeyStore) (*container.Imported, keystore.KeyStore, error) {
	imported, err := imp.Import(ref, ephemeral)
	if err == nil {
		return imported, ephemeral, nil
	}
	if !container.IsRetryable(err) {
		return nil, nil, err
	}

	imported, err = imp.Import(ref, machine)
	if err != nil {
		return nil, nil, err
	}
	return imported, machine, nil
}

// Certificate returns the leaf certificate.
func (h *Handle) Certificate() *x509.Certificate {
	return h.bundle.Certificate()
}

// Chain returns the certificates other than the leaf, in container order.
func (h *Handle) Chain() []*x509.Certificate {
	return h.bundle.Chain()
}

// Collection returns every certificate of the container, in container order.
func (h *Handle) Collection() []*x509.Certificate {
	return h.bundle.Collection()
}

// CommonName returns the leaf's common name, or nil if it has none.
func (h *Handle) CommonName() *certinfo.Identifier {
	return h.bundle.CommonName()
}

// PrivateKey returns the private key, or nil if the container holds none or
// the handle is closed.
func (h *Handle) PrivateKey() crypto.PrivateKey {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}
	return h.bundle.PrivateKey()
}

// SanNames returns the leaf's subject alternative names.
func (h *Handle) SanNames() []certinfo.Identifier {
	return h.bundle.SanNames()
}

// Path returns the container path the handle was built from.
func (h *Handle) Path() string {
	return h.ref.Path
}

// Password returns the container password the handle was built from.
func (h *Handle) Password() string {
	return h.ref.Password
}

// Ref returns the file reference the handle was built from.
func (h *Handle) Ref() container.FileRef {
	return h.ref
}

// Policy returns the storage policy that produced the bundle.
func (h *Handle) Policy() keystore.Policy {
	return h.policy
}

// Matches reports whether ref has the same path and password as the handle.
func (h *Handle) Matches(ref container.FileRef) bool {
	return h.ref == ref
}

// Close releases the private key from its key store and zeroizes it.
// PrivateKey returns nil afterward. Multiple calls to Close are safe.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.keyID != "" {
		if err := h.store.Release(h.keyID); err != nil && !errors.Is(err, keystore.ErrKeyNotFound) {
			errs = append(errs, fmt.Errorf("certcache: failed to release key: %w", err))
		}
		keystore.Zeroize(h.bundle.PrivateKey())
	}
	for _, s := range h.owned {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("certcache: failed to close %s key store: %w", s.Policy(), err))
		}
	}
	return errors.Join(errs...)
}
