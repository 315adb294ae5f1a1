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

// Package memory provides an in-memory implementation of the storage.Backend
// interface for process-lifetime key material. Values are copied in and out,
// and every stored copy is overwritten with zeros when it is replaced,
// deleted or the backend is closed. With WithLockedPages, each value lives in
// its own mlock'ed mapping outside the Go heap.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-certcache/pkg/storage"
)

// Storage is an in-memory implementation of storage.Backend.
type Storage struct {
	mu     sync.RWMutex
	data   map[string][]byte
	locked bool
	closed bool
}

// Option configures a Storage.
type Option func(*Storage)

// WithLockedPages stores every value in locked memory so it is never
// swapped to disk. Put fails with storage.ErrLockFailed when the process is
// not permitted to lock memory.
func WithLockedPages() Option {
	return func(s *Storage) {
		s.locked = true
	}
}

// New creates a new in-memory storage backend.
func New(opts ...Option) storage.Backend {
	s := &Storage{
		data: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a copy of the value for the given key.
func (s *Storage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	value, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Put stores a copy of value under key. A previous value is cleared first.
// Options are accepted for interface compatibility and ignored.
func (s *Storage) Put(key string, value []byte, opts *storage.Options) error {
	if key == "" {
		return storage.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	buf, err := s.alloc(len(value))
	if err != nil {
		return err
	}
	copy(buf, value)

	if old, exists := s.data[key]; exists {
		s.release(old)
	}
	s.data[key] = buf

	return nil
}

// Delete clears and removes the value for the given key.
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	value, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}

	s.release(value)
	delete(s.data, key)
	return nil
}

// List returns all keys with the given prefix in sorted order.
func (s *Storage) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (s *Storage) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, storage.ErrClosed
	}

	_, exists := s.data[key]
	return exists, nil
}

// Close clears every stored value and marks the storage as closed.
// Multiple calls to Close are safe.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	for key, value := range s.data {
		s.release(value)
		delete(s.data, key)
	}
	s.closed = true

	return nil
}

func (s *Storage) alloc(n int) ([]byte, error) {
	if !s.locked {
		return make([]byte, n), nil
	}
	buf, err := lockedAlloc(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrLockFailed, err)
	}
	return buf, nil
}

func (s *Storage) release(b []byte) {
	if s.locked {
		lockedFree(b)
		return
	}
	storage.Zero(b)
}
