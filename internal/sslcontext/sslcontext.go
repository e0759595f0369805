// Package sslcontext builds the *tls.Config a cluster's connection
// pools dial upstream hosts through. It is a thin factory over
// crypto/tls: certificate and cipher/version negotiation mechanics stay
// with the standard library, the same boundary
// internal/handler/tls.go draws around domain.TLSConfig.
package sslcontext

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config is one cluster's "tls" configuration object: whether to use
// TLS to reach its hosts, and how to validate/present certificates.
type Config struct {
	Enabled bool

	// ServerName overrides SNI/cert verification; defaults to the dialed
	// host's address when empty.
	ServerName string

	// CAFile, if set, replaces the system trust root with a pool
	// containing only the named CA — the mutual-TLS / private-CA case.
	CAFile string

	// CertFile/KeyFile, if both set, present a client certificate —
	// required for mutual TLS to a backend that verifies clients.
	CertFile string
	KeyFile  string

	InsecureSkipVerify bool

	MinVersion string // "1.2" or "1.3"; defaults to "1.2"
}

// Build constructs a *tls.Config from cfg, or returns nil if TLS isn't
// enabled. Returns an error if certificate/CA material fails to load.
func Build(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.MinVersion == "1.3" {
		tlsCfg.MinVersion = tls.VersionTLS13
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("sslcontext: read ca file %s: %w", cfg.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("sslcontext: no certificates parsed from %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sslcontext: load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
