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
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

const testMachineDir = "/var/lib/certcache/keys"

func TestMachineRegister(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := NewMachine(&MachineConfig{Dir: testMachineDir, Fs: fsys})
	defer store.Close()

	assert.Equal(t, PolicyMachine, store.Policy())

	for name, key := range testKeys(t) {
		t.Run(name, func(t *testing.T) {
			id := NewKeyID()
			got, err := store.Register(id, key, FlagExportable|FlagMachine)
			require.NoError(t, err)
			assert.True(t, got.(equaler).Equal(key))

			path := testMachineDir + "/" + storageKey(id)
			ok, err := afero.Exists(fsys, path)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, store.Release(id))
			ok, err = afero.Exists(fsys, path)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMachineEncryptedWithSecret(t *testing.T) {
	fsys := afero.NewMemMapFs()
	secret := []byte("machine-secret")
	store := NewMachine(&MachineConfig{Dir: testMachineDir, Secret: secret, Fs: fsys})
	key := testKeys(t)["ecdsa"]

	id := NewKeyID()
	_, err := store.Register(id, key, FlagExportable|FlagMachine)
	require.NoError(t, err)

	der, err := afero.ReadFile(fsys, testMachineDir+"/"+storageKey(id))
	require.NoError(t, err)

	_, err = pkcs8.ParsePKCS8PrivateKey(der)
	assert.Error(t, err, "persisted key must not parse without a passphrase")

	password, err := store.passphrase(id)
	require.NoError(t, err)
	parsed, err := pkcs8.ParsePKCS8PrivateKey(der, password)
	require.NoError(t, err)
	assert.True(t, key.(equaler).Equal(parsed))
}

func TestMachinePassphrase(t *testing.T) {
	store := NewMachine(&MachineConfig{Dir: testMachineDir, Secret: []byte("s")})

	a1, err := store.passphrase("a")
	require.NoError(t, err)
	a2, err := store.passphrase("a")
	require.NoError(t, err)
	b, err := store.passphrase("b")
	require.NoError(t, err)

	assert.Len(t, a1, 64)
	assert.True(t, bytes.Equal(a1, a2))
	assert.False(t, bytes.Equal(a1, b))

	none, err := NewMachine(&MachineConfig{Dir: testMachineDir}).passphrase("a")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMachineRejections(t *testing.T) {
	key := testKeys(t)["ecdsa"]

	tests := []struct {
		name   string
		config *MachineConfig
		flags  Flags
	}{
		{
			name:   "disabled",
			config: &MachineConfig{Dir: testMachineDir, Disabled: true, Fs: afero.NewMemMapFs()},
			flags:  FlagExportable | FlagMachine,
		},
		{
			name:   "no directory",
			config: &MachineConfig{Fs: afero.NewMemMapFs()},
			flags:  FlagExportable | FlagMachine,
		},
		{
			name:   "read-only filesystem",
			config: &MachineConfig{Dir: testMachineDir, Fs: afero.NewReadOnlyFs(afero.NewMemMapFs())},
			flags:  FlagExportable | FlagMachine,
		},
		{
			name:   "ephemeral flag",
			config: &MachineConfig{Dir: testMachineDir, Fs: afero.NewMemMapFs()},
			flags:  FlagExportable | FlagEphemeral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMachine(tt.config)
			_, err := store.Register(NewKeyID(), key, tt.flags)
			assert.ErrorIs(t, err, ErrPolicyRejected)
		})
	}
}

func TestMachineUnsupportedKeyNotRejected(t *testing.T) {
	store := NewMachine(&MachineConfig{Dir: testMachineDir, Fs: afero.NewMemMapFs()})

	_, err := store.Register(NewKeyID(), "bogus", FlagExportable|FlagMachine)
	assert.ErrorIs(t, err, ErrUnsupportedKey)
	assert.False(t, errors.Is(err, ErrPolicyRejected))
}

func TestMachineReleaseAndClose(t *testing.T) {
	store := NewMachine(&MachineConfig{Dir: testMachineDir, Secret: []byte("s"), Fs: afero.NewMemMapFs()})

	assert.ErrorIs(t, store.Release("never-opened"), ErrKeyNotFound)

	id := NewKeyID()
	_, err := store.Register(id, testKeys(t)["ed25519"], FlagExportable|FlagMachine)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Release("unknown"), ErrKeyNotFound)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.Equal(t, []byte{0}, store.secret)

	_, err = store.Register(NewKeyID(), testKeys(t)["ed25519"], FlagExportable|FlagMachine)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Release(id), ErrClosed)
}
