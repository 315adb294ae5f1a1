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

package cli

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (text, json)
	OutputFormat string

	// Verbose enables debug logging to stderr
	Verbose bool

	// Fs is the filesystem containers and key stores are read from
	Fs afero.Fs

	// Stdout and Stderr receive command output and logs
	Stdout io.Writer
	Stderr io.Writer
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		Fs:           afero.NewOsFs(),
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}
