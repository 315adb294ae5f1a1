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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-certcache/pkg/certinfo"
	"github.com/jeremyhahn/go-certcache/pkg/keystore"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatPEM  OutputFormat = "pem"
)

// PEMTypeCertificate is the PEM block type of an X.509 certificate
const PEMTypeCertificate = "CERTIFICATE"

// CertificateSummary describes one certificate of a container.
type CertificateSummary struct {
	Subject           string    `json:"subject"`
	Issuer            string    `json:"issuer"`
	SerialNumber      string    `json:"serial_number"`
	NotBefore         time.Time `json:"not_before"`
	NotAfter          time.Time `json:"not_after"`
	IsCA              bool      `json:"is_ca"`
	FingerprintSHA256 string    `json:"fingerprint_sha256"`
}

// InspectResult is the printable view of a loaded container.
type InspectResult struct {
	Path        string                `json:"path"`
	Policy      string                `json:"policy"`
	CommonName  string                `json:"common_name,omitempty"`
	SanNames    []certinfo.Identifier `json:"san_names"`
	PrivateKey  string                `json:"private_key,omitempty"`
	Certificate CertificateSummary    `json:"certificate"`
	Chain       []CertificateSummary  `json:"chain"`
}

// loadedBundle is a certinfo.Info that also knows where it was loaded from.
type loadedBundle interface {
	certinfo.Info
	Path() string
	Policy() keystore.Policy
}

// NewInspectResult summarizes a loaded bundle. Key material is reduced to
// its algorithm name.
func NewInspectResult(b loadedBundle) *InspectResult {
	result := &InspectResult{
		Path:        b.Path(),
		Policy:      b.Policy().String(),
		SanNames:    b.SanNames(),
		PrivateKey:  keyAlgorithm(b.PrivateKey()),
		Certificate: summarize(b.Certificate()),
		Chain:       make([]CertificateSummary, 0),
	}
	if cn := b.CommonName(); cn != nil {
		result.CommonName = cn.Value
	}
	if result.SanNames == nil {
		result.SanNames = []certinfo.Identifier{}
	}
	for _, cert := range b.Chain() {
		result.Chain = append(result.Chain, summarize(cert))
	}
	return result
}

func summarize(cert *x509.Certificate) CertificateSummary {
	sum := sha256.Sum256(cert.Raw)
	return CertificateSummary{
		Subject:           cert.Subject.String(),
		Issuer:            cert.Issuer.String(),
		SerialNumber:      cert.SerialNumber.Text(16),
		NotBefore:         cert.NotBefore.UTC(),
		NotAfter:          cert.NotAfter.UTC(),
		IsCA:              cert.IsCA,
		FingerprintSHA256: hex.EncodeToString(sum[:]),
	}
}

func keyAlgorithm(key crypto.PrivateKey) string {
	switch k := key.(type) {
	case nil:
		return ""
	case *rsa.PrivateKey:
		return fmt.Sprintf("RSA-%d", k.N.BitLen())
	case *ecdsa.PrivateKey:
		return "ECDSA-" + k.Curve.Params().Name
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return "Ed25519"
	case crypto.Signer:
		return fmt.Sprintf("%T", k.Public())
	default:
		return fmt.Sprintf("%T", key)
	}
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// PrintInspect prints a loaded container
func (p *Printer) PrintInspect(r *InspectResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Path:        %s\n", r.Path)
		fmt.Fprintf(p.writer, "Policy:      %s\n", r.Policy)
		if r.CommonName != "" {
			fmt.Fprintf(p.writer, "Common Name: %s\n", r.CommonName)
		}
		if len(r.SanNames) > 0 {
			names := make([]string, len(r.SanNames))
			for i, id := range r.SanNames {
				names[i] = id.String()
			}
			fmt.Fprintf(p.writer, "SANs:        %s\n", strings.Join(names, ", "))
		}
		if r.PrivateKey != "" {
			fmt.Fprintf(p.writer, "Private Key: %s\n", r.PrivateKey)
		} else {
			fmt.Fprintln(p.writer, "Private Key: none")
		}
		fmt.Fprintln(p.writer, "Certificate:")
		p.printSummary("  ", r.Certificate)
		fmt.Fprintf(p.writer, "Chain (%d):\n", len(r.Chain))
		for i, cert := range r.Chain {
			fmt.Fprintf(p.writer, "  [%d]\n", i)
			p.printSummary("    ", cert)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printSummary(indent string, c CertificateSummary) {
	fmt.Fprintf(p.writer, "%sSubject:    %s\n", indent, c.Subject)
	fmt.Fprintf(p.writer, "%sIssuer:     %s\n", indent, c.Issuer)
	fmt.Fprintf(p.writer, "%sSerial:     %s\n", indent, c.SerialNumber)
	fmt.Fprintf(p.writer, "%sNot Before: %s\n", indent, c.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(p.writer, "%sNot After:  %s\n", indent, c.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(p.writer, "%sSHA-256:    %s\n", indent, c.FingerprintSHA256)
}

// PrintPEM writes certs as PEM CERTIFICATE blocks in the given order.
func (p *Printer) PrintPEM(certs []*x509.Certificate) error {
	for _, cert := range certs {
		if err := pem.Encode(p.writer, &pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}); err != nil {
			return fmt.Errorf("failed to encode certificate: %w", err)
		}
	}
	return nil
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data any) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
