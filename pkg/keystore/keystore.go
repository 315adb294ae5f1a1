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

// Package keystore implements the storage policies used to materialize a
// private key while a certificate container is imported.
//
// Two policies exist. The ephemeral policy keeps key material for the
// process lifetime only and never writes it to a persistent store. The
// machine policy registers key material in a persistent, machine-wide store
// on disk. A store that cannot honor a request under its policy returns an
// error wrapping ErrPolicyRejected so callers can retry under the other one.
package keystore

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Policy identifies a key storage backend strategy.
type Policy int

const (
	// PolicyEphemeral keeps key material in process memory only.
	PolicyEphemeral Policy = iota
	// PolicyMachine may persist key material to a machine-wide store.
	PolicyMachine
)

// String returns the lowercase policy name.
func (p Policy) String() string {
	switch p {
	case PolicyEphemeral:
		return "ephemeral"
	case PolicyMachine:
		return "machine"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Flag returns the storage flag naming this policy.
func (p Policy) Flag() Flags {
	switch p {
	case PolicyEphemeral:
		return FlagEphemeral
	case PolicyMachine:
		return FlagMachine
	default:
		return 0
	}
}

// ParsePolicy parses a policy name as returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ephemeral":
		return PolicyEphemeral, nil
	case "machine":
		return PolicyMachine, nil
	default:
		return 0, fmt.Errorf("keystore: unknown policy %q", s)
	}
}

// Flags controls how a key is materialized by a KeyStore.
type Flags uint8

const (
	// FlagExportable makes the materialized key extractable. Without it the
	// store returns an opaque crypto.Signer.
	FlagExportable Flags = 1 << iota
	// FlagEphemeral requests process-lifetime storage.
	FlagEphemeral
	// FlagMachine requests machine-scoped persistent storage.
	FlagMachine
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String returns the set flag names joined by "|".
func (f Flags) String() string {
	var names []string
	if f.Has(FlagExportable) {
		names = append(names, "exportable")
	}
	if f.Has(FlagEphemeral) {
		names = append(names, "ephemeral")
	}
	if f.Has(FlagMachine) {
		names = append(names, "machine")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// KeyStore materializes private keys under one storage policy.
// All implementations must be thread-safe.
type KeyStore interface {
	// Policy returns the storage policy this store implements.
	Policy() Policy

	// Register stores key under id and returns the key as materialized by
	// the store. Returns an error wrapping ErrPolicyRejected when the store
	// cannot accept the key under its policy or the given flags. The
	// returned key never shares memory with key, which the caller may
	// zeroize once Register returns.
	Register(id string, key crypto.PrivateKey, flags Flags) (crypto.PrivateKey, error)

	// Release clears and removes the stored copy for id.
	// Returns ErrKeyNotFound if nothing is registered under id.
	Release(id string) error

	// Close releases resources held by the store.
	Close() error
}

// checkFlags rejects flags that name a policy other than p.
func checkFlags(p Policy, flags Flags) error {
	other := (FlagEphemeral | FlagMachine) &^ p.Flag()
	if flags&other != 0 {
		return fmt.Errorf("%w: %s store cannot honor flags %s", ErrPolicyRejected, p, flags)
	}
	return nil
}

// NewKeyID returns a random id for registering a key.
func NewKeyID() string {
	return uuid.NewString()
}

func storageKey(id string) string {
	return "keys/" + id + ".p8"
}
