package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"
	"resumatch/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	errNoServerCertificate = errors.New("no server certificate available")
	errServerCertExpired   = errors.New("server certificate expired")
	errNoCertificates      = errors.New("no certificates loaded")
)

// ReloadCallback is notified after each certificate reload attempt.
type ReloadCallback func(success bool, err error)

// CertificateMetrics is a snapshot of reload counters for health reporting.
type CertificateMetrics struct {
	ReloadCount        int64
	ReloadSuccessCount int64
	ReloadFailureCount int64
	LastReloadTime     time.Time
	LastReloadSuccess  bool
	LastReloadError    string
}

// CertificateManager owns the TLS certificates for the lifetime of the server
// and reloads them when a file watcher or Vault watcher reports a change. TLS
// handshakes read certificates through GetServerCertificate, so a reload
// takes effect on the next handshake without restarting the listener.
type CertificateManager struct {
	mu sync.RWMutex

	serverCert       *tls.Certificate
	serverCertExpiry time.Time
	caCertPool       *x509.CertPool
	lastReloadTime   time.Time

	fileWatcher  *CertWatcher
	vaultWatcher *VaultWatcher

	config           *config.TLSConfig
	autoReloadConfig *config.AutoReloadConfig
	vaultClient      VaultClientInterface

	reloadCallbacks []ReloadCallback
	logger          *resumatchErrors.Logger

	observabilityManager *observability.ObservabilityManager

	reloadCount        int64
	reloadSuccessCount int64
	reloadFailureCount int64
	lastReloadSuccess  bool
	lastReloadError    string
}

// NewCertificateManager creates a manager for the given TLS configuration.
// Call Start to load certificates and begin watching for changes.
func NewCertificateManager(tlsConfig *config.TLSConfig, autoReloadConfig *config.AutoReloadConfig, vaultClient VaultClientInterface, om *observability.ObservabilityManager, logger *resumatchErrors.Logger) *CertificateManager {
	return &CertificateManager{
		config:               tlsConfig,
		autoReloadConfig:     autoReloadConfig,
		vaultClient:          vaultClient,
		logger:               logger,
		observabilityManager: om,
	}
}

// Start loads the initial certificates and launches the configured watchers.
func (cm *CertificateManager) Start() error {
	if err := cm.loadCertificates(); err != nil {
		return fmt.Errorf("failed to load initial certificates: %w", err)
	}

	cm.startExpiryMonitoring()

	if err := cm.startFileWatcher(); err != nil {
		return err
	}
	return cm.startVaultWatcher()
}

// startFileWatcher watches certificate files for changes. It is skipped when
// the file watcher is disabled or no file paths are configured, as with
// Vault-sourced inline certificates.
func (cm *CertificateManager) startFileWatcher() error {
	if cm.autoReloadConfig == nil || !cm.autoReloadConfig.FileWatcher.Enabled {
		return nil
	}
	if cm.config.CertFile == "" && cm.config.KeyFile == "" && cm.config.CAFile == "" {
		return nil
	}

	watcher, err := NewCertWatcher(
		cm.config.CertFile,
		cm.config.KeyFile,
		cm.config.CAFile,
		cm.autoReloadConfig.FileWatcher.DebounceDelay,
		cm.reloadFromWatcher,
		cm.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	cm.fileWatcher = watcher

	if cm.logger != nil {
		cm.logger.Info("Certificate file watcher started",
			"cert_file", cm.config.CertFile,
			"key_file", cm.config.KeyFile,
			"ca_file", cm.config.CAFile)
	}
	return nil
}

// startVaultWatcher polls Vault for new certificate versions. It only runs
// when inline certificate content is configured, since that is the material
// Vault would replace.
func (cm *CertificateManager) startVaultWatcher() error {
	if cm.autoReloadConfig == nil || !cm.autoReloadConfig.VaultWatcher.Enabled {
		return nil
	}
	if cm.config.CertContent == "" && cm.config.KeyContent == "" && cm.config.CAContent == "" {
		return nil
	}
	if cm.vaultClient == nil {
		if cm.logger != nil {
			cm.logger.Warn("Vault watcher enabled but Vault client is nil")
		}
		return nil
	}

	vw := NewVaultWatcher(
		cm.vaultClient,
		cm.autoReloadConfig.VaultWatcher.SecretPath,
		cm.autoReloadConfig.VaultWatcher.PollInterval,
		cm.applyVaultData,
		cm.logger,
	)
	if err := vw.Start(); err != nil {
		return fmt.Errorf("failed to start Vault watcher: %w", err)
	}
	cm.vaultWatcher = vw

	if cm.logger != nil {
		cm.logger.Info("Vault watcher started",
			"secret_path", cm.autoReloadConfig.VaultWatcher.SecretPath,
			"poll_interval", cm.autoReloadConfig.VaultWatcher.PollInterval)
	}
	return nil
}

// applyVaultData copies freshly fetched PEM material into the TLS config and
// reloads. Empty fields keep their previous values, so a secret holding only
// a new key pair does not wipe the CA.
func (cm *CertificateManager) applyVaultData(data *CertificateData, err error) {
	if err != nil {
		if cm.logger != nil {
			cm.logger.LogError(err, "Failed to fetch new certificate data from Vault")
		}
		return
	}

	cm.mu.Lock()
	if data.CertContent != "" {
		cm.config.CertContent = data.CertContent
	}
	if data.KeyContent != "" {
		cm.config.KeyContent = data.KeyContent
	}
	if data.CAContent != "" {
		cm.config.CAContent = data.CAContent
	}
	cm.mu.Unlock()

	cm.reloadFromWatcher()
}

// Stop shuts down both watchers. Each watcher is always given the chance to
// stop; the first failure is returned.
func (cm *CertificateManager) Stop() error {
	var firstErr error

	if cm.fileWatcher != nil {
		if err := cm.fileWatcher.Stop(); err != nil {
			if cm.logger != nil {
				cm.logger.LogError(err, "Failed to stop file watcher")
			}
			firstErr = err
		}
	}
	if cm.vaultWatcher != nil {
		if err := cm.vaultWatcher.Stop(); err != nil {
			if cm.logger != nil {
				cm.logger.LogError(err, "Failed to stop Vault watcher")
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr == nil && cm.logger != nil {
		cm.logger.Info("Certificate manager stopped")
	}
	return firstErr
}

// GetServerCertificate serves TLS handshakes. An expired certificate fails
// the handshake rather than presenting a certificate clients would reject.
func (cm *CertificateManager) GetServerCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCert == nil {
		return nil, errNoServerCertificate
	}

	now := time.Now()
	if now.After(cm.serverCertExpiry) {
		if cm.logger != nil {
			cm.logger.LogError(errServerCertExpired, "Server certificate expired",
				"expiry", cm.serverCertExpiry,
				"server_name", hello.ServerName)
		}
		return nil, errServerCertExpired
	}

	// Inside the renewal window, kick off a reload in the background while
	// still serving the current certificate.
	if cm.autoReloadConfig != nil && cm.autoReloadConfig.PreemptiveRenewal > 0 {
		if now.After(cm.serverCertExpiry.Add(-cm.autoReloadConfig.PreemptiveRenewal)) {
			go cm.preemptiveRenewal()
		}
	}

	return cm.serverCert, nil
}

// GetCACertPool returns the CA pool used for peer verification.
func (cm *CertificateManager) GetCACertPool() *x509.CertPool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.caCertPool
}

// VerifyPeerCertificate validates the presented client certificate against
// the current CA pool. Installed as the VerifyPeerCertificate callback so
// verification always uses the pool from the most recent reload.
func (cm *CertificateManager) VerifyPeerCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("no peer certificates provided")
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse peer certificate: %w", err)
	}

	pool := cm.GetCACertPool()
	if pool == nil {
		return errors.New("no CA certificate pool available")
	}

	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("peer certificate verification failed: %w", err)
	}
	return nil
}

// ReloadCertificates forces an immediate reload.
func (cm *CertificateManager) ReloadCertificates() error {
	return cm.loadCertificates()
}

// AddReloadCallback registers a callback invoked after every reload attempt.
func (cm *CertificateManager) AddReloadCallback(callback ReloadCallback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.reloadCallbacks = append(cm.reloadCallbacks, callback)
}

// CheckExpiry returns the time remaining until the loaded server certificate
// expires.
func (cm *CertificateManager) CheckExpiry() (time.Duration, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCertExpiry.IsZero() {
		return 0, errNoCertificates
	}
	return time.Until(cm.serverCertExpiry), nil
}

// GetMetrics returns a snapshot of the reload counters.
func (cm *CertificateManager) GetMetrics() *CertificateMetrics {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return &CertificateMetrics{
		ReloadCount:        cm.reloadCount,
		ReloadSuccessCount: cm.reloadSuccessCount,
		ReloadFailureCount: cm.reloadFailureCount,
		LastReloadTime:     cm.lastReloadTime,
		LastReloadSuccess:  cm.lastReloadSuccess,
		LastReloadError:    cm.lastReloadError,
	}
}

// loadCertificates loads the key pair and CA pool and swaps them in under the
// write lock, so handshakes never observe a half-updated set.
func (cm *CertificateManager) loadCertificates() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var newServerCert *tls.Certificate
	hasFiles := cm.config.CertFile != "" && cm.config.KeyFile != ""
	hasContent := cm.config.CertContent != "" && cm.config.KeyContent != ""

	if hasFiles || hasContent {
		var cert tls.Certificate
		var err error
		if hasContent {
			cert, err = tls.X509KeyPair([]byte(cm.config.CertContent), []byte(cm.config.KeyContent))
		} else {
			cert, err = tls.LoadX509KeyPair(cm.config.CertFile, cm.config.KeyFile)
		}
		if err != nil {
			return err
		}

		if len(cert.Certificate) > 0 {
			leaf, err := x509.ParseCertificate(cert.Certificate[0])
			if err != nil {
				return fmt.Errorf("failed to parse server certificate: %w", err)
			}
			cm.serverCertExpiry = leaf.NotAfter
		}
		newServerCert = &cert
	}

	newCAPool, err := cm.loadCAPool()
	if err != nil {
		return err
	}

	cm.serverCert = newServerCert
	cm.caCertPool = newCAPool
	cm.lastReloadTime = time.Now()

	cm.recordReload(true, nil)
	for _, callback := range cm.reloadCallbacks {
		go callback(true, nil)
	}

	if cm.logger != nil {
		cm.logger.Info("Certificates reloaded successfully",
			"server_cert_expiry", cm.serverCertExpiry,
			"reload_time", cm.lastReloadTime)
	}
	return nil
}

// loadCAPool builds the client CA pool for mutual TLS. Other modes do not
// verify client certificates and get a nil pool.
func (cm *CertificateManager) loadCAPool() (*x509.CertPool, error) {
	if cm.config.Mode != "mutual" {
		return nil, nil
	}

	var pem []byte
	switch {
	case cm.config.CAContent != "":
		pem = []byte(cm.config.CAContent)
	case cm.config.CAFile != "":
		data, err := os.ReadFile(cm.config.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pem = data
	default:
		return nil, nil
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(pem); !ok {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

// recordReload updates counters and emits metrics. Callers must hold the
// write lock.
func (cm *CertificateManager) recordReload(success bool, err error) {
	cm.reloadCount++
	if success {
		cm.reloadSuccessCount++
		cm.lastReloadSuccess = true
		cm.lastReloadError = ""
	} else {
		cm.reloadFailureCount++
		cm.lastReloadSuccess = false
		if err != nil {
			cm.lastReloadError = err.Error()
		}
	}

	cm.emitReloadMetrics(success, err)
}

// reloadFromWatcher is the reload entry point shared by the file and Vault
// watchers.
func (cm *CertificateManager) reloadFromWatcher() {
	if cm.logger != nil {
		cm.logger.Info("Certificate reload triggered by watcher")
	}

	if err := cm.loadCertificates(); err != nil {
		cm.reloadFailed(err)
	}
}

// reloadFailed records a failed reload and notifies callbacks. The previous
// certificates stay in service.
func (cm *CertificateManager) reloadFailed(err error) {
	cm.mu.Lock()
	cm.recordReload(false, err)
	cm.mu.Unlock()

	if cm.logger != nil {
		cm.logger.LogError(err, "Failed to reload certificates")
	}

	cm.mu.RLock()
	callbacks := make([]ReloadCallback, len(cm.reloadCallbacks))
	copy(callbacks, cm.reloadCallbacks)
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		go callback(false, err)
	}
}

// preemptiveRenewal reloads certificates ahead of expiry. File-based setups
// pick up whatever is on disk; renewal against a CA would hook in here.
func (cm *CertificateManager) preemptiveRenewal() {
	if cm.logger != nil {
		cm.logger.Info("Triggering preemptive certificate renewal")
	}
	cm.reloadFromWatcher()
}

// emitReloadMetrics records the reload outcome to OpenTelemetry. Instruments
// are nil when observability is disabled.
func (cm *CertificateManager) emitReloadMetrics(success bool, err error) {
	if cm.observabilityManager == nil {
		return
	}
	metrics := cm.observabilityManager.GetMetrics()
	if metrics.CertReloadCount == nil {
		return
	}

	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("cert_type", "server"),
	}
	if success {
		attrs = append(attrs, attribute.String("status", "success"))
	} else {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		attrs = append(attrs,
			attribute.String("status", "failure"),
			attribute.String("error", errMsg))
	}
	metrics.CertReloadCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	cm.emitExpiryMetrics()
}

// emitExpiryMetrics publishes the seconds-to-expiry gauge for the server
// certificate.
func (cm *CertificateManager) emitExpiryMetrics() {
	if cm.observabilityManager == nil {
		return
	}
	metrics := cm.observabilityManager.GetMetrics()
	if metrics.CertExpiryTime == nil || cm.serverCertExpiry.IsZero() {
		return
	}

	metrics.CertExpiryTime.Record(context.Background(),
		time.Until(cm.serverCertExpiry).Seconds(),
		metric.WithAttributes(attribute.String("cert_type", "server")))
}

// startExpiryMonitoring refreshes the expiry gauge once a minute so it stays
// meaningful between reloads.
func (cm *CertificateManager) startExpiryMonitoring() {
	if cm.observabilityManager == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			cm.mu.RLock()
			cm.emitExpiryMetrics()
			cm.mu.RUnlock()
		}
	}()

	if cm.logger != nil {
		cm.logger.Info("Certificate expiry monitoring started")
	}
}
