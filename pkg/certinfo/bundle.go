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

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"slices"
)

// Bundle is an immutable, fully validated certificate bundle held in memory.
type Bundle struct {
	certificate *x509.Certificate
	chain       []*x509.Certificate
	collection  []*x509.Certificate
	commonName  *Identifier
	privateKey  crypto.PrivateKey
	sanNames    []Identifier
}

var _ Info = (*Bundle)(nil)

// New builds a Bundle from the certificates of a container, in container
// order, and an optional private key.
//
// With a key, the leaf is the first certificate whose public key matches it.
// Without one, the leaf is the first non-CA certificate, or the first
// certificate if all are CAs. Every other certificate forms the chain.
func New(collection []*x509.Certificate, key crypto.PrivateKey) (*Bundle, error) {
	if len(collection) == 0 {
		return nil, ErrNoCertificates
	}
	if slices.Contains(collection, nil) {
		return nil, ErrNilCertificate
	}

	leafIdx, err := selectLeaf(collection, key)
	if err != nil {
		return nil, err
	}

	leaf := collection[leafIdx]
	chain := make([]*x509.Certificate, 0, len(collection)-1)
	chain = append(chain, collection[:leafIdx]...)
	chain = append(chain, collection[leafIdx+1:]...)

	return &Bundle{
		certificate: leaf,
		chain:       chain,
		collection:  slices.Clone(collection),
		commonName:  commonName(leaf),
		privateKey:  key,
		sanNames:    sanNames(leaf),
	}, nil
}

func selectLeaf(collection []*x509.Certificate, key crypto.PrivateKey) (int, error) {
	if key == nil {
		for i, cert := range collection {
			if !cert.IsCA {
				return i, nil
			}
		}
		return 0, nil
	}

	pk, ok := key.(interface{ Public() crypto.PublicKey })
	if !ok {
		return 0, fmt.Errorf("%w: %T has no public key", ErrKeyMismatch, key)
	}
	pub, ok := pk.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return 0, fmt.Errorf("%w: %T public key is not comparable", ErrKeyMismatch, key)
	}

	for i, cert := range collection {
		if pub.Equal(cert.PublicKey) {
			return i, nil
		}
	}
	return 0, ErrKeyMismatch
}

// Certificate returns the leaf certificate.
func (b *Bundle) Certificate() *x509.Certificate {
	return b.certificate
}

// Chain returns the non-leaf certificates in container order.
func (b *Bundle) Chain() []*x509.Certificate {
	return slices.Clone(b.chain)
}

// Collection returns all certificates in container order.
func (b *Bundle) Collection() []*x509.Certificate {
	return slices.Clone(b.collection)
}

// CommonName returns a copy of the leaf common name identifier, or nil.
func (b *Bundle) CommonName() *Identifier {
	if b.commonName == nil {
		return nil
	}
	id := *b.commonName
	return &id
}

// PrivateKey returns the private key, or nil.
func (b *Bundle) PrivateKey() crypto.PrivateKey {
	return b.privateKey
}

// HasPrivateKey reports whether the bundle carries a private key.
func (b *Bundle) HasPrivateKey() bool {
	return b.privateKey != nil
}

// SanNames returns the leaf subject alternative names.
func (b *Bundle) SanNames() []Identifier {
	return slices.Clone(b.sanNames)
}
