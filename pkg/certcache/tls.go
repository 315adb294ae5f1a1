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

import "crypto/tls"

// TLSCertificate returns the leaf, chain and private key as a
// tls.Certificate. The chain follows the leaf in container order.
// Returns ErrNoPrivateKey for certificate-only containers and closed handles.
func (h *Handle) TLSCertificate() (tls.Certificate, error) {
	key := h.PrivateKey()
	if key == nil {
		return tls.Certificate{}, ErrNoPrivateKey
	}

	leaf := h.Certificate()
	chain := h.Chain()
	der := make([][]byte, 0, len(chain)+1)
	der = append(der, leaf.Raw)
	for _, cert := range chain {
		der = append(der, cert.Raw)
	}

	return tls.Certificate{
		Certificate: der,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
