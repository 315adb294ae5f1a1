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
	"slices"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-certcache/pkg/container"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// Option configures how New imports a container.
type Option func(*options)

type options struct {
	fs        afero.Fs
	importer  container.Importer
	ephemeral keystore.KeyStore
	machine   keystore.KeyStore

	// stores created by newOptions and owned by the resulting handle
	owned []keystore.KeyStore
}

// WithImporter sets the container importer. Defaults to a PKCS#12 importer.
func WithImporter(imp container.Importer) Option {
	return func(o *options) {
		o.importer = imp
	}
}

// WithEphemeralStore sets the store used for the first import attempt.
// Defaults to a new in-memory store per handle. The caller keeps ownership
// of a store passed here.
func WithEphemeralStore(s keystore.KeyStore) Option {
	return func(o *options) {
		o.ephemeral = s
	}
}

// WithMachineStore sets the store used for the fallback import. Defaults
// to a machine store in keystore.DefaultMachineDir. The caller keeps
// ownership of a store passed here.
func WithMachineStore(s keystore.KeyStore) Option {
	return func(o *options) {
		o.machine = s
	}
}

// WithFs sets the filesystem used by the default importer and machine
// store. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}
	if o.importer == nil {
		o.importer = container.NewPKCS12Importer(container.WithFs(o.fs))
	}
	if o.ephemeral == nil {
		o.ephemeral = keystore.NewEphemeral(nil)
		o.owned = append(o.owned, o.ephemeral)
	}
	if o.machine == nil {
		o.machine = keystore.NewMachine(&keystore.MachineConfig{
			Dir: keystore.DefaultMachineDir(),
			Fs:  o.fs,
		})
		o.owned = append(o.owned, o.machine)
	}
	return o
}

func (o *options) owns(s keystore.KeyStore) bool {
	return s != nil && slices.Contains(o.owned, s)
}

// closeOwned closes every owned store except keep.
func (o *options) closeOwned(keep keystore.KeyStore) {
	for _, s := range o.owned {
		if s != keep {
			_ = s.Close()
		}
	}
}
