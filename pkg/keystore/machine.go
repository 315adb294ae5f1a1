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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/crypto/hkdf"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
	"github.com/jeremyhahn/go-certcache/pkg/storage/file"
)

// passphraseInfo is the HKDF info prefix for per-key passphrases.
const passphraseInfo = "certcache machine key v1 "

// MachineConfig configures a MachineStore.
type MachineConfig struct {
	// Dir is the machine-wide key directory. Required for the store to
	// accept registrations.
	Dir string

	// Secret, when set, encrypts every persisted key with a passphrase
	// derived from it and the key id.
	Secret []byte

	// Disabled rejects every registration.
	Disabled bool

	// Fs selects the filesystem. Defaults to the OS filesystem.
	Fs afero.Fs
}

// MachineStore persists key material as PKCS#8 files in a machine-wide
// directory. The directory is opened on first use so an unusable location
// surfaces as a policy rejection at import time.
type MachineStore struct {
	mu       sync.Mutex
	dir      string
	secret   []byte
	disabled bool
	fs       afero.Fs
	backend  storage.Backend
	closed   bool
}

// NewMachine creates a machine-scoped key store.
func NewMachine(config *MachineConfig) *MachineStore {
	if config == nil {
		config = &MachineConfig{}
	}

	fsys := config.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	var secret []byte
	if len(config.Secret) > 0 {
		secret = append([]byte(nil), config.Secret...)
	}

	return &MachineStore{
		dir:      config.Dir,
		secret:   secret,
		disabled: config.Disabled,
		fs:       fsys,
	}
}

// Policy returns PolicyMachine.
func (s *MachineStore) Policy() Policy {
	return PolicyMachine
}

// Register persists key under id and returns the key decoded from the
// persisted copy.
func (s *MachineStore) Register(id string, key crypto.PrivateKey, flags Flags) (crypto.PrivateKey, error) {
	if id == "" {
		return nil, ErrInvalidKeyID
	}
	if err := checkFlags(PolicyMachine, flags); err != nil {
		return nil, err
	}
	if s.disabled {
		return nil, fmt.Errorf("%w: machine key storage is disabled", ErrPolicyRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backend, err := s.open()
	if err != nil {
		return nil, err
	}

	password, err := s.passphrase(id)
	if err != nil {
		return nil, err
	}
	defer storage.Zero(password)

	der, err := encodeKey(key, password)
	if err != nil {
		return nil, err
	}
	defer storage.Zero(der)

	if err := backend.Put(storageKey(id), der, storage.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyRejected, err)
	}

	stored, err := backend.Get(storageKey(id))
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to read machine key: %w", err)
	}
	decoded, err := decodeKey(stored, password)
	if err != nil {
		_ = backend.Delete(storageKey(id))
		return nil, err
	}

	return materialize(decoded, flags)
}

// Release overwrites and removes the persisted copy registered under id.
func (s *MachineStore) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.backend == nil {
		return ErrKeyNotFound
	}

	if err := s.backend.Delete(storageKey(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("keystore: failed to release machine key: %w", err)
	}
	return nil
}

// Close clears the derivation secret. Persisted keys stay on disk until
// released.
func (s *MachineStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	storage.Zero(s.secret)

	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}

// open returns the file backend, creating the key directory on first use.
// Callers must hold s.mu.
func (s *MachineStore) open() (storage.Backend, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.backend != nil {
		return s.backend, nil
	}
	if s.dir == "" {
		return nil, fmt.Errorf("%w: no machine key directory configured", ErrPolicyRejected)
	}

	backend, err := file.New(s.dir, file.WithFs(s.fs))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyRejected, err)
	}
	s.backend = backend
	return backend, nil
}

// passphrase derives the PKCS#8 encryption passphrase for id. It returns nil
// when no secret is configured.
func (s *MachineStore) passphrase(id string) ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, nil
	}

	raw := make([]byte, 32)
	defer storage.Zero(raw)

	kdf := hkdf.New(sha256.New, s.secret, nil, []byte(passphraseInfo+id))
	if _, err := io.ReadFull(kdf, raw); err != nil {
		return nil, fmt.Errorf("keystore: failed to derive passphrase: %w", err)
	}

	out := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(out, raw)
	return out, nil
}
