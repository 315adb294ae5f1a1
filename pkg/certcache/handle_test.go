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
	"crypto/ecdsa"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/jeremyhahn/go-certcache/internal/testutil"
	"github.com/jeremyhahn/go-certcache/pkg/certinfo"
	"github.com/jeremyhahn/go-certcache/pkg/container"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

const (
	leafPath   = "/var/cache/certcache/leaf.p12"
	brokenPath = "/var/cache/certcache/broken.p12"
	machineDir = "/var/lib/certcache/keys"
)

// recordingImporter records the policy of every import attempt.
type recordingImporter struct {
	next container.Importer

	mu       sync.Mutex
	policies []keystore.Policy
}

func (r *recordingImporter) Import(ref container.FileRef, store keystore.KeyStore) (*container.Imported, error) {
	r.mu.Lock()
	r.policies = append(r.policies, store.Policy())
	r.mu.Unlock()
	return r.next.Import(ref, store)
}

func (r *recordingImporter) attempts() []keystore.Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]keystore.Policy(nil), r.policies...)
}

// scriptedImporter returns a fixed result per policy.
type scriptedImporter struct {
	results map[keystore.Policy]error
	calls   []keystore.Policy
}

func (s *scriptedImporter) Import(ref container.FileRef, store keystore.KeyStore) (*container.Imported, error) {
	s.calls = append(s.calls, store.Policy())
	if err := s.results[store.Policy()]; err != nil {
		return nil, err
	}
	return &container.Imported{Bundle: &certinfo.Bundle{}, Policy: store.Policy()}, nil
}

type fixture struct {
	chain     *testutil.TestChain
	fs        afero.Fs
	importer  *recordingImporter
	ephemeral *keystore.EphemeralStore
	machine   *keystore.MachineStore
}

// newFixture writes leaf.p12 protected by "s3cr3t" to an in-memory
// filesystem. ephemeralOK controls whether the ephemeral store accepts keys.
func newFixture(t *testing.T, ephemeralOK bool) *fixture {
	t.Helper()

	chain, err := testutil.GenerateTestChain("example.com", "example.com", "www.example.com")
	require.NoError(t, err)
	data, err := chain.PKCS12("s3cr3t")
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, leafPath, data, 0600))
	require.NoError(t, afero.WriteFile(fsys, brokenPath, []byte("not a pkcs12 container"), 0600))

	f := &fixture{
		chain:     chain,
		fs:        fsys,
		importer:  &recordingImporter{next: container.NewPKCS12Importer(container.WithFs(fsys))},
		ephemeral: keystore.NewEphemeral(&keystore.EphemeralConfig{Disabled: !ephemeralOK}),
		machine:   keystore.NewMachine(&keystore.MachineConfig{Dir: machineDir, Fs: fsys}),
	}
	t.Cleanup(func() {
		_ = f.ephemeral.Close()
		_ = f.machine.Close()
	})
	return f
}

func (f *fixture) options() []Option {
	return []Option{
		WithImporter(f.importer),
		WithEphemeralStore(f.ephemeral),
		WithMachineStore(f.machine),
	}
}

func TestNewEphemeralFirstAttempt(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, keystore.PolicyEphemeral, h.Policy())
	assert.Equal(t, []keystore.Policy{keystore.PolicyEphemeral}, f.importer.attempts())

	exists, err := afero.DirExists(f.fs, machineDir)
	require.NoError(t, err)
	assert.False(t, exists, "machine store must not be touched")
}

func TestNewMatchesFreshDecode(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	data, err := afero.ReadFile(f.fs, leafPath)
	require.NoError(t, err)
	key, leaf, caCerts, err := pkcs12.DecodeChain(data, "s3cr3t")
	require.NoError(t, err)

	assert.Equal(t, leaf.Raw, h.Certificate().Raw)
	require.Len(t, h.Chain(), len(caCerts))
	for i, cert := range caCerts {
		assert.Equal(t, cert.Raw, h.Chain()[i].Raw)
	}
	require.Len(t, h.Collection(), len(caCerts)+1)
	assert.Equal(t, leaf.Raw, h.Collection()[0].Raw)
	assert.Equal(t, leaf.Subject.CommonName, h.CommonName().Value)
	assert.Equal(t, leaf.DNSNames, certinfo.Values(h.SanNames()))

	got, ok := h.PrivateKey().(*ecdsa.PrivateKey)
	require.True(t, ok)
	assert.True(t, got.Equal(key))
}

func TestNewFallbackScenario(t *testing.T) {
	f := newFixture(t, false)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, []keystore.Policy{keystore.PolicyEphemeral, keystore.PolicyMachine}, f.importer.attempts())
	assert.Equal(t, keystore.PolicyMachine, h.Policy())
	require.NotNil(t, h.CommonName())
	assert.Equal(t, "example.com", h.CommonName().Value)
	assert.Equal(t, []string{"example.com", "www.example.com"}, certinfo.Values(h.SanNames()))
	assert.NotNil(t, h.PrivateKey())
}

func TestFallbackMatchesDirectMachineImport(t *testing.T) {
	f := newFixture(t, false)
	ref := container.FileRef{Path: leafPath, Password: "s3cr3t"}

	h, err := New(ref, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	direct := keystore.NewMachine(&keystore.MachineConfig{Dir: "/var/lib/certcache/direct", Fs: f.fs})
	defer direct.Close()
	imported, err := container.NewPKCS12Importer(container.WithFs(f.fs)).Import(ref, direct)
	require.NoError(t, err)
	b := imported.Bundle

	assert.Equal(t, b.Certificate().Raw, h.Certificate().Raw)
	require.Len(t, h.Chain(), len(b.Chain()))
	for i := range b.Chain() {
		assert.Equal(t, b.Chain()[i].Raw, h.Chain()[i].Raw)
	}
	assert.Equal(t, b.SanNames(), h.SanNames())
	assert.Equal(t, b.CommonName(), h.CommonName())
}

func TestNewBrokenContainerNoFallback(t *testing.T) {
	for _, ephemeralOK := range []bool{true, false} {
		f := newFixture(t, ephemeralOK)

		h, err := New(container.FileRef{Path: brokenPath, Password: "wrong"}, f.options()...)
		require.Error(t, err)
		assert.Nil(t, h)

		assert.ErrorIs(t, err, container.ErrImportFailed)
		assert.NotErrorIs(t, err, container.ErrStoragePolicyRejected)
		assert.Equal(t, []keystore.Policy{keystore.PolicyEphemeral}, f.importer.attempts())
	}
}

func TestNewWrongPasswordNoFallback(t *testing.T) {
	f := newFixture(t, false)

	_, err := New(container.FileRef{Path: leafPath, Password: "wrong"}, f.options()...)
	require.Error(t, err)

	assert.Equal(t, container.KindImportFailed, container.KindOf(err))
	assert.ErrorIs(t, err, pkcs12.ErrIncorrectPassword)
	assert.Len(t, f.importer.attempts(), 1)
}

func TestNewMissingFile(t *testing.T) {
	f := newFixture(t, false)

	h, err := New(container.FileRef{Path: "/var/cache/certcache/missing.p12", Password: "s3cr3t"}, f.options()...)
	require.Error(t, err)
	assert.Nil(t, h)

	assert.ErrorIs(t, err, container.ErrResourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, []keystore.Policy{keystore.PolicyEphemeral}, f.importer.attempts())
}

func TestNewBothPoliciesRejected(t *testing.T) {
	f := newFixture(t, false)
	machine := keystore.NewMachine(&keystore.MachineConfig{Disabled: true, Fs: f.fs})
	defer machine.Close()

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"},
		WithImporter(f.importer),
		WithEphemeralStore(f.ephemeral),
		WithMachineStore(machine))
	require.Error(t, err)
	assert.Nil(t, h)

	assert.ErrorIs(t, err, container.ErrStoragePolicyRejected)
	var ie *container.ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, keystore.PolicyMachine, ie.Policy)
	assert.Equal(t, []keystore.Policy{keystore.PolicyEphemeral, keystore.PolicyMachine}, f.importer.attempts())
}

func TestLoadStrategy(t *testing.T) {
	rejected := &container.ImportError{Kind: container.KindStoragePolicyRejected, Err: keystore.ErrPolicyRejected}
	failed := &container.ImportError{Kind: container.KindImportFailed, Err: errors.New("corrupt")}
	unavailable := &container.ImportError{Kind: container.KindResourceUnavailable, Err: os.ErrNotExist}

	tests := []struct {
		name      string
		ephemeral error
		machine   error
		wantErr   error
		wantCalls []keystore.Policy
		wantStore keystore.Policy
	}{
		{
			name:      "ephemeral succeeds",
			machine:   failed,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral},
			wantStore: keystore.PolicyEphemeral,
		},
		{
			name:      "rejected then machine succeeds",
			ephemeral: rejected,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral, keystore.PolicyMachine},
			wantStore: keystore.PolicyMachine,
		},
		{
			name:      "rejected then machine fails",
			ephemeral: rejected,
			machine:   failed,
			wantErr:   failed,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral, keystore.PolicyMachine},
		},
		{
			name:      "import failed short-circuits",
			ephemeral: failed,
			wantErr:   failed,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral},
		},
		{
			name:      "resource unavailable short-circuits",
			ephemeral: unavailable,
			wantErr:   unavailable,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral},
		},
		{
			name:      "unclassified error short-circuits",
			ephemeral: keystore.ErrPolicyRejected,
			wantErr:   keystore.ErrPolicyRejected,
			wantCalls: []keystore.Policy{keystore.PolicyEphemeral},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &scriptedImporter{results: map[keystore.Policy]error{
				keystore.PolicyEphemeral: tt.ephemeral,
				keystore.PolicyMachine:   tt.machine,
			}}
			ephemeral := keystore.NewEphemeral(nil)
			machine := keystore.NewMachine(nil)

			imported, store, err := load(imp, container.FileRef{Path: leafPath}, ephemeral, machine)
			assert.Equal(t, tt.wantCalls, imp.calls)

			if tt.wantErr != nil {
				// returned unchanged, not rewrapped
				assert.Same(t, tt.wantErr, err)
				assert.Nil(t, imported)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStore, imported.Policy)
			assert.Equal(t, tt.wantStore, store.Policy())
		})
	}
}

func TestHandleRefRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	ref := container.FileRef{Path: leafPath, Password: "s3cr3t"}

	h, err := New(ref, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, leafPath, h.Path())
	assert.Equal(t, "s3cr3t", h.Password())
	assert.Equal(t, ref, h.Ref())
	assert.True(t, h.Matches(ref))
	assert.False(t, h.Matches(container.FileRef{Path: leafPath, Password: "other"}))
	assert.False(t, h.Matches(container.FileRef{Path: brokenPath, Password: "s3cr3t"}))
}

func TestHandleRepeatableEnumeration(t *testing.T) {
	f := newFixture(t, false)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	chain1, chain2 := h.Chain(), h.Chain()
	sans1, sans2 := h.SanNames(), h.SanNames()
	assert.Equal(t, chain1, chain2)
	assert.Equal(t, sans1, sans2)

	chain1[0] = nil
	sans1[0] = certinfo.NewDNSIdentifier("mutated.example.com")
	h.CommonName().Value = "mutated.example.com"

	assert.NotNil(t, h.Chain()[0])
	assert.Equal(t, sans2, h.SanNames())
	assert.Equal(t, "example.com", h.CommonName().Value)
}

func TestHandleClose(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	key, ok := h.PrivateKey().(*ecdsa.PrivateKey)
	require.True(t, ok)
	keyID := h.keyID

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.Nil(t, h.PrivateKey())
	assert.Zero(t, key.D.Sign())
	assert.ErrorIs(t, f.ephemeral.Release(keyID), keystore.ErrKeyNotFound)
	assert.NotNil(t, h.Certificate(), "certificates stay readable")

	// caller-supplied stores stay open
	other, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	require.NoError(t, other.Close())
}

func TestHandleCloseMachineKey(t *testing.T) {
	f := newFixture(t, false)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)

	keys, err := afero.ReadDir(f.fs, machineDir+"/keys")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, h.Close())

	keys, err = afero.ReadDir(f.fs, machineDir+"/keys")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewDefaultStores(t *testing.T) {
	f := newFixture(t, true)

	h, err := New(container.FileRef{Path: leafPath, Password: "s3cr3t"}, WithFs(f.fs))
	require.NoError(t, err)

	assert.Equal(t, keystore.PolicyEphemeral, h.Policy())
	require.Len(t, h.owned, 1)
	assert.Equal(t, keystore.PolicyEphemeral, h.owned[0].Policy())
	require.NoError(t, h.Close())
}

func TestNewTrustStoreContainer(t *testing.T) {
	f := newFixture(t, false)
	data, err := f.chain.TrustStore("s3cr3t")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(f.fs, "/var/cache/certcache/ca.p12", data, 0600))

	h, err := New(container.FileRef{Path: "/var/cache/certcache/ca.p12", Password: "s3cr3t"}, f.options()...)
	require.NoError(t, err)
	defer h.Close()

	// no key to register, so the ephemeral policy is never rejected
	assert.Equal(t, keystore.PolicyEphemeral, h.Policy())
	assert.Nil(t, h.PrivateKey())
	assert.Len(t, h.Collection(), 2)
}
