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
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
	"github.com/jeremyhahn/go-certcache/pkg/storage/memory"
)

// EphemeralConfig configures an EphemeralStore.
type EphemeralConfig struct {
	// Disabled rejects every registration, for security contexts where
	// process-lifetime key storage is not permitted.
	Disabled bool

	// LockMemory keeps stored key material in mlock'ed pages. Registration
	// is rejected when the process may not lock memory.
	LockMemory bool

	// Backend overrides the in-memory backend.
	Backend storage.Backend
}

// EphemeralStore holds key material in process memory only.
type EphemeralStore struct {
	mu       sync.RWMutex
	backend  storage.Backend
	disabled bool
	closed   bool
}

// NewEphemeral creates an ephemeral key store. A nil config yields an
// enabled store on an unlocked memory backend.
func NewEphemeral(config *EphemeralConfig) *EphemeralStore {
	if config == nil {
		config = &EphemeralConfig{}
	}

	backend := config.Backend
	if backend == nil {
		var opts []memory.Option
		if config.LockMemory {
			opts = append(opts, memory.WithLockedPages())
		}
		backend = memory.New(opts...)
	}

	return &EphemeralStore{
		backend:  backend,
		disabled: config.Disabled,
	}
}

// Policy returns PolicyEphemeral.
func (s *EphemeralStore) Policy() Policy {
	return PolicyEphemeral
}

// Register stores a PKCS#8 copy of key in memory and returns the key decoded
// from that copy.
func (s *EphemeralStore) Register(id string, key crypto.PrivateKey, flags Flags) (crypto.PrivateKey, error) {
	if id == "" {
		return nil, ErrInvalidKeyID
	}
	if err := checkFlags(PolicyEphemeral, flags); err != nil {
		return nil, err
	}
	if s.disabled {
		return nil, fmt.Errorf("%w: ephemeral key storage is disabled", ErrPolicyRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	der, err := encodeKey(key, nil)
	if err != nil {
		return nil, err
	}
	defer storage.Zero(der)

	if err := s.backend.Put(storageKey(id), der, nil); err != nil {
		if errors.Is(err, storage.ErrLockFailed) {
			return nil, fmt.Errorf("%w: %w", ErrPolicyRejected, err)
		}
		return nil, fmt.Errorf("keystore: failed to store ephemeral key: %w", err)
	}

	stored, err := s.backend.Get(storageKey(id))
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read ephemeral key: %w", err)
	}
	decoded, err := decodeKey(stored, nil)
	if err != nil {
		_ = s.backend.Delete(storageKey(id))
		return nil, err
	}

	return materialize(decoded, flags)
}

// Release clears the in-memory copy registered under id.
func (s *EphemeralStore) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.backend.Delete(storageKey(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("keystore: failed to release ephemeral key: %w", err)
	}
	return nil
}

// Close clears all key material held by the store.
func (s *EphemeralStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}
