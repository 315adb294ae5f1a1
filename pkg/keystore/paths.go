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
	"os"
	"path/filepath"
	"runtime"
)

// DefaultMachineDir returns the platform's machine-wide key directory.
func DefaultMachineDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("ProgramData")
		if base == "" {
			base = `C:\ProgramData`
		}
		return filepath.Join(base, "certcache", "keys")
	case "darwin":
		return "/Library/Application Support/certcache/keys"
	default:
		return "/var/lib/certcache/keys"
	}
}
