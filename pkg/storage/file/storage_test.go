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

package file

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
)

func newMemStore(t *testing.T) (storage.Backend, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store, err := New("/var/lib/certcache", WithFs(fsys))
	require.NoError(t, err)
	return store, fsys
}

func TestNew(t *testing.T) {
	t.Run("empty root", func(t *testing.T) {
		_, err := New("")
		assert.Error(t, err)
	})

	t.Run("creates root", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		_, err := New("/a/b/c", WithFs(fsys))
		require.NoError(t, err)

		ok, err := afero.DirExists(fsys, "/a/b/c")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		_, err := New("/x", WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))
		assert.Error(t, err)
	})
}

func TestPutGetDelete(t *testing.T) {
	store, fsys := newMemStore(t)

	require.NoError(t, store.Put("keys/abc.p8", []byte("secret"), nil))

	got, err := store.Get("keys/abc.p8")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)

	ok, err := store.Exists("keys/abc.p8")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete("keys/abc.p8"))

	ok, err = afero.Exists(fsys, "/var/lib/certcache/keys/abc.p8")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get("keys/abc.p8")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete("keys/abc.p8"), storage.ErrNotFound)
}

func TestPutOverwrite(t *testing.T) {
	store, _ := newMemStore(t)

	require.NoError(t, store.Put("keys/a", []byte("a much longer first value"), nil))
	require.NoError(t, store.Put("keys/a", []byte("short"), nil))

	got, err := store.Get("keys/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), got)
}

func TestScrubOverwritesContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := &FileStorage{fs: fsys, rootDir: "/root"}
	require.NoError(t, afero.WriteFile(fsys, "/root/k", []byte("secret"), 0600))

	require.NoError(t, s.scrub("/root/k"))

	data, err := afero.ReadFile(fsys, "/root/k")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 6), data)
}

func TestList(t *testing.T) {
	store, _ := newMemStore(t)
	require.NoError(t, store.Put("keys/b", []byte("1"), nil))
	require.NoError(t, store.Put("keys/a", []byte("2"), nil))
	require.NoError(t, store.Put("meta/c", []byte("3"), nil))

	keys, err := store.List("keys/")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys/a", "keys/b"}, keys)

	all, err := store.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"keys/a", "keys/b", "meta/c"}, all)
}

func TestInvalidKeys(t *testing.T) {
	store, _ := newMemStore(t)

	for _, key := range []string{"", "../escape", "keys/../../escape", "/abs/path", "nul\x00byte"} {
		t.Run(key, func(t *testing.T) {
			assert.ErrorIs(t, store.Put(key, []byte("x"), nil), storage.ErrInvalidKey)
			_, err := store.Get(key)
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
			_, err = store.Exists(key)
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
			assert.ErrorIs(t, store.Delete(key), storage.ErrInvalidKey)
		})
	}
}

func TestPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("keys/k", []byte("x"), nil))
	require.NoError(t, store.Put("other/o", []byte("x"), &storage.Options{Permissions: 0640}))

	info, err := os.Stat(filepath.Join(dir, "keys", "k"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	info, err = os.Stat(filepath.Join(dir, "other", "o"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm()&^0022)
}

func TestReadOnlyPutFails(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/ro", 0700))
	store := &FileStorage{fs: afero.NewReadOnlyFs(base), rootDir: "/ro"}

	assert.Error(t, store.Put("keys/a", []byte("x"), nil))
}
