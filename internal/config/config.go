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

// Package config loads the certcache YAML configuration and builds the
// key stores and logger it describes.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-certcache/pkg/adapters/logger"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// Config represents the complete certcache configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Keystore KeystoreConfig `yaml:"keystore"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KeystoreConfig configures the two storage policies
type KeystoreConfig struct {
	Ephemeral EphemeralConfig `yaml:"ephemeral"`
	Machine   MachineConfig   `yaml:"machine"`
}

// EphemeralConfig configures the ephemeral key store
type EphemeralConfig struct {
	Disabled   bool `yaml:"disabled"`
	LockMemory bool `yaml:"lock_memory"`
}

// MachineConfig configures the machine key store
type MachineConfig struct {
	Disabled   bool   `yaml:"disabled"`
	Dir        string `yaml:"dir"`
	Secret     string `yaml:"secret,omitempty"`
	SecretFile string `yaml:"secret_file,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Keystore: KeystoreConfig{
			Machine: MachineConfig{
				Dir: keystore.DefaultMachineDir(),
			},
		},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Logging
	if level := os.Getenv("CERTCACHE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CERTCACHE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Key stores
	if disabled := os.Getenv("CERTCACHE_EPHEMERAL_DISABLED"); disabled != "" {
		v, err := strconv.ParseBool(disabled)
		if err != nil {
			log.Printf("Warning: invalid CERTCACHE_EPHEMERAL_DISABLED value %q, using %t: %v",
				disabled, cfg.Keystore.Ephemeral.Disabled, err)
		} else {
			cfg.Keystore.Ephemeral.Disabled = v
		}
	}
	if dir := os.Getenv("CERTCACHE_MACHINE_DIR"); dir != "" {
		cfg.Keystore.Machine.Dir = dir
	}
	if secret := os.Getenv("CERTCACHE_MACHINE_SECRET"); secret != "" {
		cfg.Keystore.Machine.Secret = secret
		cfg.Keystore.Machine.SecretFile = ""
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Keystore.Ephemeral.Disabled && c.Keystore.Machine.Disabled {
		return fmt.Errorf("at least one storage policy must be enabled")
	}

	if !c.Keystore.Machine.Disabled {
		if c.Keystore.Machine.Dir == "" {
			return fmt.Errorf("machine keystore dir is required when enabled")
		}
		if c.Keystore.Machine.Secret != "" && c.Keystore.Machine.SecretFile != "" {
			return fmt.Errorf("machine keystore secret and secret_file are mutually exclusive")
		}
	}

	return nil
}

// NewLogger builds the configured logger writing to w.
func (c *Config) NewLogger(w io.Writer) logger.Logger {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: strings.ToLower(c.Logging.Format),
		Writer: w,
	})
}

// NewEphemeralStore builds the configured ephemeral key store.
func (c *Config) NewEphemeralStore() *keystore.EphemeralStore {
	return keystore.NewEphemeral(&keystore.EphemeralConfig{
		Disabled:   c.Keystore.Ephemeral.Disabled,
		LockMemory: c.Keystore.Ephemeral.LockMemory,
	})
}

// NewMachineStore builds the configured machine key store on fsys. The
// secret file, when set, is read from fsys.
func (c *Config) NewMachineStore(fsys afero.Fs) (*keystore.MachineStore, error) {
	mc := c.Keystore.Machine

	var secret []byte
	switch {
	case mc.SecretFile != "":
		data, err := afero.ReadFile(fsys, mc.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read machine secret file: %w", err)
		}
		secret = []byte(strings.TrimSpace(string(data)))
		clear(data)
	case mc.Secret != "":
		secret = []byte(mc.Secret)
	}

	store := keystore.NewMachine(&keystore.MachineConfig{
		Dir:      mc.Dir,
		Secret:   secret,
		Disabled: mc.Disabled,
		Fs:       fsys,
	})
	clear(secret)
	return store, nil
}
