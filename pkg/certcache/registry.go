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
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-certcache/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certcache/pkg/container"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
	"github.com/jeremyhahn/go-certcache/pkg/metrics"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Logger receives load and eviction events. Defaults to a no-op logger.
	Logger logger.Logger

	// Options are passed to New for every handle the registry builds.
	Options []Option
}

// Registry caches one Handle per container path. A cached handle is reused
// only when both path and password match; it is replaced otherwise. The
// registry never evicts on its own. Handles that are replaced, evicted or
// left at Close are closed by the registry.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	options []Option
	logger  logger.Logger
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(config *RegistryConfig) *Registry {
	if config == nil {
		config = &RegistryConfig{}
	}

	log := config.Logger
	if log == nil {
		log = logger.NoOp{}
	}

	return &Registry{
		handles: make(map[string]*Handle),
		options: slices.Clone(config.Options),
		logger:  log,
	}
}

// Load returns the cached handle for ref, building a new one when none is
// cached or the cached one was built with a different password. Build
// errors are returned unchanged.
func (r *Registry) Load(ref container.FileRef) (*Handle, error) {
	r.mu.RLock()
	cached, closed := r.handles[ref.Path], r.closed
	r.mu.RUnlock()

	if closed {
		return nil, ErrRegistryClosed
	}
	if cached != nil && cached.Matches(ref) {
		return cached, nil
	}

	start := time.Now()
	h, err := New(ref, r.options...)
	elapsed := time.Since(start)
	if err != nil {
		r.recordFailure(ref, err, elapsed)
		return nil, err
	}

	fallback := h.Policy() == keystore.PolicyMachine
	metrics.RecordImport(h.Policy().String(), fallback, elapsed)
	r.logger.Debug("container loaded",
		logger.String("path", ref.Path),
		logger.String("policy", h.Policy().String()),
		logger.Bool("fallback", fallback),
		logger.Duration("duration", elapsed))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = h.Close()
		return nil, ErrRegistryClosed
	}
	stale := r.handles[ref.Path]
	if stale != nil && stale.Matches(ref) {
		// built concurrently by another caller
		r.mu.Unlock()
		_ = h.Close()
		return stale, nil
	}
	r.handles[ref.Path] = h
	r.mu.Unlock()

	metrics.HandleOpened()
	if stale != nil {
		r.release(stale, "replaced")
	}
	return h, nil
}

// Get returns the cached handle for path.
func (r *Registry) Get(path string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[path]
	return h, ok
}

// Evict removes and closes the cached handle for path.
// Returns ErrNotCached if no handle is cached for path.
func (r *Registry) Evict(path string) error {
	r.mu.Lock()
	h, ok := r.handles[path]
	if ok {
		delete(r.handles, path)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNotCached, path)
	}
	return r.release(h, "evicted")
}

// Paths returns the cached container paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.handles))
	for path := range r.handles {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Close closes every cached handle. Multiple calls to Close are safe.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := r.release(h, "closed"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) release(h *Handle, reason string) error {
	metrics.HandleClosed()
	err := h.Close()
	if err != nil {
		r.logger.WithError(err).Warn("failed to close handle",
			logger.String("path", h.Path()),
			logger.String("reason", reason))
		return err
	}
	r.logger.Debug("handle closed",
		logger.String("path", h.Path()),
		logger.String("reason", reason))
	return nil
}

func (r *Registry) recordFailure(ref container.FileRef, err error, elapsed time.Duration) {
	kind := container.KindOf(err)

	policy := keystore.PolicyEphemeral.String()
	var ie *container.ImportError
	if errors.As(err, &ie) {
		policy = ie.Policy.String()
	}

	metrics.RecordImportError(policy, kind.String(), elapsed)
	r.logger.WithError(err).Error("failed to load container",
		logger.String("path", ref.Path),
		logger.String("policy", policy),
		logger.String("kind", kind.String()),
		logger.Bool("retryable", container.IsRetryable(err)))
}
