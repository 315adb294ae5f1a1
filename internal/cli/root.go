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

// Package cli implements the certcache command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the certcache command tree around cfg.
func NewRootCommand(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "certcache",
		Short: "go-certcache CLI - Inspect cached PKCS#12 certificate containers",
		Long: `certcache loads PKCS#12 certificate containers the way a certificate
cache would: the private key is imported under the ephemeral storage policy
first and under the machine-scoped policy only when ephemeral storage is
rejected.

Storage policies:
  - ephemeral: key material held in process memory only
  - machine:   key material persisted to the machine key directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(cfg.Stdout)
	rootCmd.SetErr(cfg.Stderr)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (defaults and CERTCACHE_* environment variables when empty)")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json, pem)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(newVersionCommand(cfg))
	rootCmd.AddCommand(newInspectCommand(cfg))

	return rootCmd
}

// Execute runs the root command with args and prints any error in the
// selected output format.
func Execute(args []string) error {
	cfg := NewConfig()
	cmd := NewRootCommand(cfg)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err != nil {
		printer := NewPrinter(cfg.OutputFormat, cfg.Stderr)
		_ = printer.PrintError(err) // Error printing to stderr is best-effort
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cfg *Config, format string, args ...any) {
	if cfg.Verbose {
		fmt.Fprintf(cfg.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
