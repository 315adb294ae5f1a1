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
	"crypto/x509"
	"fmt"
	"slices"
)

// IdentifierType classifies an Identifier.
type IdentifierType string

const (
	IdentifierDNS   IdentifierType = "dns"
	IdentifierIP    IdentifierType = "ip"
	IdentifierEmail IdentifierType = "email"
	IdentifierURI   IdentifierType = "uri"
)

// Identifier is a subject identity bound to a certificate.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// String returns "type:value".
func (i Identifier) String() string {
	return fmt.Sprintf("%s:%s", i.Type, i.Value)
}

// NewDNSIdentifier returns a dns identifier for name.
func NewDNSIdentifier(name string) Identifier {
	return Identifier{Type: IdentifierDNS, Value: name}
}

// commonName returns the subject CN of cert as a dns identifier, or nil.
func commonName(cert *x509.Certificate) *Identifier {
	if cert.Subject.CommonName == "" {
		return nil
	}
	id := NewDNSIdentifier(cert.Subject.CommonName)
	return &id
}

// sanNames collects DNS, IP, email and URI SANs of cert in that order.
func sanNames(cert *x509.Certificate) []Identifier {
	ids := make([]Identifier, 0,
		len(cert.DNSNames)+len(cert.IPAddresses)+len(cert.EmailAddresses)+len(cert.URIs))

	for _, name := range cert.DNSNames {
		ids = append(ids, NewDNSIdentifier(name))
	}
	for _, ip := range cert.IPAddresses {
		ids = append(ids, Identifier{Type: IdentifierIP, Value: ip.String()})
	}
	for _, email := range cert.EmailAddresses {
		ids = append(ids, Identifier{Type: IdentifierEmail, Value: email})
	}
	for _, uri := range cert.URIs {
		ids = append(ids, Identifier{Type: IdentifierURI, Value: uri.String()})
	}

	return slices.Clip(ids)
}

// Values returns the identifier values in order.
func Values(ids []Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Value
	}
	return out
}
