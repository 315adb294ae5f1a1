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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-certcache/internal/config"
	"github.com/jeremyhahn/go-certcache/pkg/certcache"
	"github.com/jeremyhahn/go-certcache/pkg/container"
	"github.com/jeremyhahn/go-certcache/pkg/metrics"
)

type inspectOptions struct {
	file        string
	password    string
	passwordEnv string
}

func newInspectCommand(cfg *Config) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load a PKCS#12 container and print its contents",
		Long: `Load a PKCS#12 container through the certificate cache and print the
leaf certificate, chain, identifiers and the storage policy that produced it.

Examples:
  certcache inspect --file /var/cache/certcache/leaf.p12 --password s3cr3t
  certcache inspect --file leaf.p12 --password-env LEAF_PASSWORD -o json
  certcache inspect --file leaf.p12 --password s3cr3t -o pem > chain.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "path to the PKCS#12 container (required)")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "container password")
	cmd.Flags().StringVar(&opts.passwordEnv, "password-env", "", "environment variable holding the container password")
	_ = cmd.MarkFlagRequired("file")
	cmd.MarkFlagsMutuallyExclusive("password", "password-env")

	return cmd
}

func (o *inspectOptions) resolvePassword() (string, error) {
	if o.passwordEnv == "" {
		return o.password, nil
	}
	password, ok := os.LookupEnv(o.passwordEnv)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", o.passwordEnv)
	}
	return password, nil
}

func runInspect(cmd *cobra.Command, cfg *Config, opts *inspectOptions) error {
	password, err := opts.resolvePassword()
	if err != nil {
		return err
	}

	appCfg, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return err
	}
	if !appCfg.Metrics.Enabled {
		metrics.Disable()
	}
	if cfg.Verbose {
		appCfg.Logging.Level = "debug"
	}

	ephemeral := appCfg.NewEphemeralStore()
	defer ephemeral.Close()

	machine, err := appCfg.NewMachineStore(cfg.Fs)
	if err != nil {
		return err
	}
	defer machine.Close()

	registry := certcache.NewRegistry(&certcache.RegistryConfig{
		Logger: appCfg.NewLogger(cfg.Stderr),
		Options: []certcache.Option{
			certcache.WithFs(cfg.Fs),
			certcache.WithEphemeralStore(ephemeral),
			certcache.WithMachineStore(machine),
		},
	})
	defer registry.Close()

	printVerbose(cfg, "Loading container %s", opts.file)
	h, err := registry.Load(container.FileRef{Path: opts.file, Password: password})
	if err != nil {
		return err
	}
	printVerbose(cfg, "Imported under %s policy", h.Policy())

	printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
	if printer.format == OutputFormatPEM {
		return printer.PrintPEM(h.Collection())
	}
	return printer.PrintInspect(NewInspectResult(h))
}
