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

import (
	"crypto"
	"crypto/ecdsa"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-certcache/pkg/container"
)

func TestTLSCertificate(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	cert, err := h.TLSCertificate()
	require.NoError(t, err)

	require.Len(t, cert.Certificate, 3)
	assert.Equal(t, f.chain.Leaf.Cert.Raw, cert.Certificate[0])
	assert.Equal(t, f.chain.Intermediate.Cert.Raw, cert.Certificate[1])
	assert.Equal(t, f.chain.Root.Cert.Raw, cert.Certificate[2])
	assert.Same(t, h.Certificate(), cert.Leaf)

	signer, ok := cert.PrivateKey.(crypto.Signer)
	require.True(t, ok)
	pub, ok := signer.Public().(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(cert.Leaf.PublicKey))
}

func TestTLSCertificateWithoutKey(t *testing.T) {
	f := newFixture(t, true)
	data, err := f.chain.TrustStore("s3cr3t")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(f.fs, "/var/cache/certcache/ca.p12", data, 0600))

	h, err := New(container.FileRef{Path: "/var/cache/certcache/ca.p12", Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.TLSCertificate()
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestTLSCertificateAfterClose(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.TLSCertificate()
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}
