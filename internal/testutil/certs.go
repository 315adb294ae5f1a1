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

// Package testutil generates certificate chains and PKCS#12 containers for tests.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// TestCA is a generated certificate authority.
type TestCA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// TestCertificate is a generated end-entity certificate.
type TestCertificate struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// TestChain is a leaf signed by an intermediate signed by a root.
type TestChain struct {
	Root         *TestCA
	Intermediate *TestCA
	Leaf         *TestCertificate
}

// GenerateTestCA generates a CA certificate. A nil parent yields a
// self-signed root.
func GenerateTestCA(commonName string, parent *TestCA) (*TestCA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	template, err := newTemplate(commonName)
	if err != nil {
		return nil, err
	}
	template.IsCA = true
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign

	issuer, signer := template, crypto.Signer(key)
	if parent != nil {
		issuer, signer = parent.Cert, parent.Key
	}

	cert, err := sign(template, issuer, &key.PublicKey, signer)
	if err != nil {
		return nil, err
	}
	return &TestCA{Cert: cert, Key: key}, nil
}

// GenerateTestLeaf generates a server certificate for commonName signed by ca.
func GenerateTestLeaf(ca *TestCA, commonName string, dnsNames ...string) (*TestCertificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	template, err := newTemplate(commonName)
	if err != nil {
		return nil, err
	}
	template.DNSNames = dnsNames
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}

	cert, err := sign(template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, err
	}
	return &TestCertificate{Cert: cert, Key: key}, nil
}

// GenerateTestChain generates root, intermediate and leaf certificates.
func GenerateTestChain(commonName string, dnsNames ...string) (*TestChain, error) {
	root, err := GenerateTestCA("Test Root CA", nil)
	if err != nil {
		return nil, err
	}
	intermediate, err := GenerateTestCA("Test Intermediate CA", root)
	if err != nil {
		return nil, err
	}
	leaf, err := GenerateTestLeaf(intermediate, commonName, dnsNames...)
	if err != nil {
		return nil, err
	}
	return &TestChain{Root: root, Intermediate: intermediate, Leaf: leaf}, nil
}

// CACerts returns the intermediate and root certificates in that order.
func (c *TestChain) CACerts() []*x509.Certificate {
	return []*x509.Certificate{c.Intermediate.Cert, c.Root.Cert}
}

// PKCS12 encodes the leaf key, leaf and CA certificates into a container.
// An empty password produces an unprotected container.
func (c *TestChain) PKCS12(password string) ([]byte, error) {
	encoder := pkcs12.Modern
	if password == "" {
		encoder = pkcs12.Passwordless
	}
	data, err := encoder.Encode(c.Leaf.Key, c.Leaf.Cert, c.CACerts(), password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12: %w", err)
	}
	return data, nil
}

// TrustStore encodes the CA certificates into a container without a key.
func (c *TestChain) TrustStore(password string) ([]byte, error) {
	data, err := pkcs12.Modern.EncodeTrustStore(c.CACerts(), password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12 trust store: %w", err)
	}
	return data, nil
}

func newTemplate(commonName string) (*x509.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	return &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"certcache tests"},
			CommonName:   commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(24 * time.Hour),
		BasicConstraintsValid: true,
	}, nil
}

func sign(template, issuer *x509.Certificate, pub crypto.PublicKey, signer crypto.Signer) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, issuer, pub, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
