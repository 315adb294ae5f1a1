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

package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/youmark/pkcs8"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
)

// encodeKey marshals key to PKCS#8 DER, encrypted when password is set.
func encodeKey(key crypto.PrivateKey, password []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrUnsupportedKey
	}
	der, err := pkcs8.MarshalPrivateKey(key, password, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	return der, nil
}

// decodeKey parses PKCS#8 DER and clears der afterwards.
func decodeKey(der, password []byte) (crypto.PrivateKey, error) {
	defer storage.Zero(der)

	var (
		key any
		err error
	)
	if len(password) > 0 {
		key, err = pkcs8.ParsePKCS8PrivateKey(der, password)
	} else {
		key, err = pkcs8.ParsePKCS8PrivateKey(der)
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to parse stored key: %w", err)
	}
	return key, nil
}

// materialize applies flags to a decoded key.
func materialize(key crypto.PrivateKey, flags Flags) (crypto.PrivateKey, error) {
	if flags.Has(FlagExportable) {
		return key, nil
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a signer", ErrUnsupportedKey, key)
	}
	return &opaqueKey{signer: signer}, nil
}

// opaqueKey hides the underlying private key behind crypto.Signer.
type opaqueKey struct {
	signer crypto.Signer
}

func (k *opaqueKey) Public() crypto.PublicKey {
	return k.signer.Public()
}

func (k *opaqueKey) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return k.signer.Sign(rand, digest, opts)
}

// Zeroize overwrites the secret scalars of RSA, ECDSA and Ed25519 private
// keys with zeros. Other key types are left untouched. The key is unusable
// afterwards. Copies made by the Go runtime or crypto libraries are out of
// reach and are not cleared.
func Zeroize(key crypto.PrivateKey) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		wipeInt(k.D)
		for _, p := range k.Primes {
			wipeInt(p)
		}
		wipeInt(k.Precomputed.Dp)
		wipeInt(k.Precomputed.Dq)
		wipeInt(k.Precomputed.Qinv)
		for i := range k.Precomputed.CRTValues {
			wipeInt(k.Precomputed.CRTValues[i].Exp)
			wipeInt(k.Precomputed.CRTValues[i].Coeff)
			wipeInt(k.Precomputed.CRTValues[i].R)
		}
	case *ecdsa.PrivateKey:
		wipeInt(k.D)
	case ed25519.PrivateKey:
		clear(k)
	case *ed25519.PrivateKey:
		if k != nil {
			clear(*k)
		}
	case *opaqueKey:
		Zeroize(k.signer)
	}
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	clear(x.Bits())
	x.SetInt64(0)
}
