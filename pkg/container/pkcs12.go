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

package container

import (
	"crypto"
	"crypto/x509"
	"errors"

	"github.com/spf13/afero"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/jeremyhahn/go-certcache/pkg/certinfo"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
	"github.com/jeremyhahn/go-certcache/pkg/storage"
)

// errNoKeyStore is returned when Import is called without a key store.
var errNoKeyStore = errors.New("container: key store is required")

// PKCS12Importer imports PKCS#12 (.p12/.pfx) containers.
type PKCS12Importer struct {
	fs afero.Fs
}

var _ Importer = (*PKCS12Importer)(nil)

// Option configures a PKCS12Importer.
type Option func(*PKCS12Importer)

// WithFs sets the filesystem containers are read from. Defaults to the OS
// filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(imp *PKCS12Importer) {
		imp.fs = fsys
	}
}

// NewPKCS12Importer creates a PKCS#12 importer.
func NewPKCS12Importer(opts ...Option) *PKCS12Importer {
	imp := &PKCS12Importer{
		fs: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Import reads ref.Path, decodes it with ref.Password and registers the
// private key with store, always exportable, under the store's policy.
// On failure nothing stays registered with the store.
func (imp *PKCS12Importer) Import(ref FileRef, store keystore.KeyStore) (*Imported, error) {
	if store == nil {
		return nil, newError(KindImportFailed, ref, 0, errNoKeyStore)
	}
	policy := store.Policy()

	data, err := afero.ReadFile(imp.fs, ref.Path)
	if err != nil {
		return nil, newError(KindResourceUnavailable, ref, policy, err)
	}
	defer storage.Zero(data)

	key, certs, err := decode(data, ref.Password)
	if err != nil {
		return nil, newError(KindImportFailed, ref, policy, err)
	}

	var keyID string
	if key != nil {
		keyID = keystore.NewKeyID()
		materialized, err := store.Register(keyID, key, keystore.FlagExportable|policy.Flag())
		keystore.Zeroize(key)
		if err != nil {
			kind := KindImportFailed
			if errors.Is(err, keystore.ErrPolicyRejected) {
				kind = KindStoragePolicyRejected
			}
			return nil, newError(kind, ref, policy, err)
		}
		key = materialized
	}

	bundle, err := certinfo.New(certs, key)
	if err != nil {
		if keyID != "" {
			_ = store.Release(keyID)
			keystore.Zeroize(key)
		}
		return nil, newError(KindImportFailed, ref, policy, err)
	}

	return &Imported{
		Bundle: bundle,
		KeyID:  keyID,
		Policy: policy,
	}, nil
}

// decode returns the private key, if any, and every certificate of a
// PKCS#12 container in container order. Containers without a key bag are
// read as trust stores.
func decode(data []byte, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	key, leaf, caCerts, err := pkcs12.DecodeChain(data, password)
	if err == nil {
		certs := make([]*x509.Certificate, 0, len(caCerts)+1)
		certs = append(certs, leaf)
		certs = append(certs, caCerts...)
		return key, certs, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return nil, nil, err
	}

	certs, tsErr := pkcs12.DecodeTrustStore(data, password)
	if tsErr != nil {
		return nil, nil, err
	}
	return nil, certs, nil
}
