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

package container

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// Kind classifies an import failure.
type Kind int

const (
	// KindImportFailed is a decode failure not attributable to the storage
	// policy: wrong password, corrupt or unsupported container, a key that
	// matches no certificate. Not retryable under any policy.
	KindImportFailed Kind = iota + 1

	// KindStoragePolicyRejected means the key store refused the key under its
	// policy in the current context. Recoverable with the other policy.
	KindStoragePolicyRejected

	// KindResourceUnavailable means the container file could not be read.
	KindResourceUnavailable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindImportFailed:
		return "import failed"
	case KindStoragePolicyRejected:
		return "storage policy rejected"
	case KindResourceUnavailable:
		return "resource unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against an *ImportError of the same kind.
var (
	ErrImportFailed          = errors.New("container: import failed")
	ErrStoragePolicyRejected = errors.New("container: storage policy rejected")
	ErrResourceUnavailable   = errors.New("container: resource unavailable")
)

// ImportError describes a failed import. Err is the underlying cause,
// returned unchanged by Unwrap.
type ImportError struct {
	Kind   Kind
	Path   string
	Policy keystore.Policy
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("container: %s: %q (%s policy): %v", e.Kind, e.Path, e.Policy, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *ImportError) Is(target error) bool {
	switch target {
	case ErrImportFailed:
		return e.Kind == KindImportFailed
	case ErrStoragePolicyRejected:
		return e.Kind == KindStoragePolicyRejected
	case ErrResourceUnavailable:
		return e.Kind == KindResourceUnavailable
	}
	return false
}

// KindOf returns the Kind of the first *ImportError in err's chain, or 0.
func KindOf(err error) Kind {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}

// IsRetryable reports whether err may succeed under a different storage policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoragePolicyRejected)
}

func newError(kind Kind, ref FileRef, policy keystore.Policy, err error) *ImportError {
	return &ImportError{Kind: kind, Path: ref.Path, Policy: policy, Err: err}
}
