package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"resumatch/internal/config"
	"resumatch/internal/observability"
)

// cipherSuiteIDsByName maps configuration names to crypto/tls constants.
// Unknown names are silently skipped when the config is applied.
var cipherSuiteIDsByName = map[string]uint16{
	"TLS_AES_128_GCM_SHA256":                  tls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":                  tls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256":            tls.TLS_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// configureTLS applies the configured TLS mode to the HTTP server. The
// "server" and "mutual" modes share the same setup path; mutual additionally
// wires client certificate verification inside buildTLSConfig.
func (s *Server) configureTLS(httpServer *http.Server, vaultClient VaultClientInterface, om *observability.ObservabilityManager) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "disabled":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	case "server":
		fmt.Printf("Starting server with HTTPS (server-only TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Server-only (no client certificates required)")
	case "mutual":
		fmt.Printf("Starting server with mTLS (mutual TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Mutual (client certificates required)")
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	if err := s.startCertManager(vaultClient, om); err != nil {
		return err
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}
	httpServer.TLSConfig = tlsConfig

	return nil
}

// startCertManager launches certificate auto-reload when enabled. The manager
// owns certificate state from here on; buildTLSConfig hands the handshake
// callbacks over to it instead of loading static certificates.
func (s *Server) startCertManager(vaultClient VaultClientInterface, om *observability.ObservabilityManager) error {
	if !s.TLSConfig.AutoReload.Enabled {
		return nil
	}

	cm := NewCertificateManager(&s.TLSConfig, &s.TLSConfig.AutoReload, vaultClient, om, s.Logger)
	if err := cm.Start(); err != nil {
		return fmt.Errorf("failed to start certificate manager: %w", err)
	}
	s.CertificateManager = cm

	cm.AddReloadCallback(func(success bool, err error) {
		if success {
			s.Logger.Info("TLS certificates reloaded successfully")
		} else {
			s.Logger.LogError(err, "Failed to reload TLS certificates")
		}
	})

	fmt.Println("TLS auto-reload: ENABLED")
	if s.TLSConfig.AutoReload.FileWatcher.Enabled {
		fmt.Println("  - File watching enabled")
	}
	if s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		fmt.Println("  - Vault watching enabled")
	}

	return nil
}

// vaultClientForWatcher creates a Vault client when the Vault watcher is
// enabled, and nil otherwise.
func (s *Server) vaultClientForWatcher() (VaultClientInterface, error) {
	if !s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		return nil, nil
	}

	vc, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	if vc == nil {
		// Watcher enabled but Vault integration itself is off. Return an
		// untyped nil so the certificate manager skips the watcher.
		return nil, nil
	}
	return vc, nil
}

// buildTLSConfig assembles the tls.Config for the configured mode.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	tc := &tls.Config{
		MinVersion:   s.minTLSVersion(),
		CipherSuites: cipherSuiteIDs(s.TLSConfig.CipherSuites),
	}

	if err := s.installCertificates(tc); err != nil {
		return nil, err
	}

	if s.TLSConfig.Mode == "mutual" {
		pool, err := s.clientCAPool()
		if err != nil {
			return nil, err
		}
		tc.ClientCAs = pool
		tc.ClientAuth = s.clientAuthPolicy()
	} else {
		tc.ClientAuth = tls.NoClientCert
	}

	if s.TLSConfig.InsecureSkipVerify {
		tc.InsecureSkipVerify = true
		fmt.Println("WARNING: TLS certificate verification is disabled (insecureSkipVerify=true)")
	}
	if s.TLSConfig.ServerName != "" {
		tc.ServerName = s.TLSConfig.ServerName
	}

	return tc, nil
}

// installCertificates wires certificate retrieval into the TLS config. With a
// running certificate manager the handshake fetches certificates dynamically;
// otherwise a static key pair is loaded once at startup.
func (s *Server) installCertificates(tc *tls.Config) error {
	if s.CertificateManager != nil {
		tc.GetCertificate = s.CertificateManager.GetServerCertificate
		if s.TLSConfig.Mode == "mutual" {
			tc.VerifyPeerCertificate = s.CertificateManager.VerifyPeerCertificate
		}
		return nil
	}

	cert, err := s.staticKeyPair()
	if err != nil {
		return err
	}
	tc.Certificates = []tls.Certificate{cert}
	return nil
}

// staticKeyPair loads the server certificate from inline PEM content when
// present (the Vault path), falling back to certificate files.
func (s *Server) staticKeyPair() (tls.Certificate, error) {
	if s.TLSConfig.CertContent != "" && s.TLSConfig.KeyContent != "" {
		cert, err := tls.X509KeyPair([]byte(s.TLSConfig.CertContent), []byte(s.TLSConfig.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	}

	if s.TLSConfig.CertFile != "" && s.TLSConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	}

	return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
}

// clientCAPool builds the CA pool used to verify client certificates. CA
// content takes precedence over a CA file, matching server certificate
// handling.
func (s *Server) clientCAPool() (*x509.CertPool, error) {
	var pem []byte
	switch {
	case s.TLSConfig.CAContent != "":
		pem = []byte(s.TLSConfig.CAContent)
	case s.TLSConfig.CAFile != "":
		data, err := os.ReadFile(s.TLSConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pem = data
	default:
		return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(pem); !ok {
		return nil, fmt.Errorf("failed to append CA cert")
	}
	return pool, nil
}

func (s *Server) minTLSVersion() uint16 {
	switch s.TLSConfig.MinVersion {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

func (s *Server) clientAuthPolicy() tls.ClientAuthType {
	switch s.TLSConfig.ClientAuthPolicy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

// cipherSuiteIDs translates configured suite names, dropping unknown ones.
// A nil result leaves the choice to crypto/tls defaults.
func cipherSuiteIDs(names []string) []uint16 {
	if len(names) == 0 {
		return nil
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		if id, ok := cipherSuiteIDsByName[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
