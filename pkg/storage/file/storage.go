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

// Package file provides a filesystem implementation of the storage.Backend
// interface on top of afero, so the same code serves the OS filesystem and
// in-memory filesystems in tests.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	keysFilePerms = 0600 // keys/* = owner rw only
	defaultPerms  = 0600
)

// FileStorage stores each value as a file below rootDir.
type FileStorage struct {
	mu      sync.RWMutex
	fs      afero.Fs
	rootDir string
}

// Option configures a FileStorage.
type Option func(*FileStorage)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(f *FileStorage) {
		f.fs = fsys
	}
}

// New creates a FileStorage rooted at rootDir, creating the directory with
// 0700 permissions if needed.
func New(rootDir string, opts ...Option) (storage.Backend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	f := &FileStorage{
		fs:      afero.NewOsFs(),
		rootDir: filepath.Clean(rootDir),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.fs.MkdirAll(f.rootDir, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return f, nil
}

// Get retrieves the value for the given key.
func (f *FileStorage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}

	return data, nil
}

// Put writes value to the file for key, clearing any previous content.
// Permissions come from opts when set, otherwise from the key prefix.
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	if err := f.fs.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	if err := f.scrub(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file storage: failed to clear key %q: %w", key, err)
	}

	if err := afero.WriteFile(f.fs, path, value, f.permissions(key, opts)); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}

	return nil
}

// Delete overwrites the file for key with zeros and removes it.
func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	if err := f.scrub(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to clear key %q: %w", key, err)
	}

	if err := f.fs.Remove(path); err != nil {
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}

	return nil
}

// List returns all keys with the given prefix in sorted order.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0)
	err := afero.Walk(f.fs, f.rootDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(f.rootDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (f *FileStorage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	ok, err := afero.Exists(f.fs, path)
	if err != nil {
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}
	return ok, nil
}

// Close is a no-op provided for interface compliance.
func (f *FileStorage) Close() error {
	return nil
}

// scrub overwrites an existing file with zeros of the same length.
func (f *FileStorage) scrub(path string) error {
	info, err := f.fs.Stat(path)
	if err != nil {
		return err
	}

	file, err := f.fs.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(make([]byte, info.Size())); err != nil {
		return err
	}
	return file.Sync()
}

// keyToPath converts a storage key to a path below rootDir.
// Keys may contain separators but must not escape the root.
func (f *FileStorage) keyToPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "\x00") {
		return "", storage.ErrInvalidKey
	}
	if filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q is absolute", storage.ErrInvalidKey, key)
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the storage root", storage.ErrInvalidKey, key)
	}

	return filepath.Join(f.rootDir, cleaned), nil
}

func (f *FileStorage) permissions(key string, opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	if strings.HasPrefix(key, "keys/") {
		return keysFilePerms
	}
	return defaultPerms
}
