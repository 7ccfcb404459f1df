package server

import (
	"fmt"
	"sync"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

// VaultClientInterface is the subset of the Vault client the server needs,
// kept as an interface so watchers can be tested against a mock.
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSecret(path, key string) (string, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// CertificateData holds PEM material fetched from a Vault secret.
type CertificateData struct {
	CertContent string
	KeyContent  string
	CAContent   string
}

// VaultReloadCallback receives freshly fetched certificate data, or the error
// that prevented fetching it.
type VaultReloadCallback func(data *CertificateData, err error)

// VaultWatcher polls a KV v2 secret and invokes the reload callback whenever
// the secret's version advances. Detection is version-based, so rewriting the
// same content into Vault does not trigger a reload.
type VaultWatcher struct {
	mu sync.RWMutex

	client         VaultClientInterface
	secretPath     string
	pollInterval   time.Duration
	reloadCallback VaultReloadCallback
	logger         *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
}

// NewVaultWatcher creates a watcher for the given secret path.
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, reloadCallback VaultReloadCallback, logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		client:         client,
		secretPath:     secretPath,
		pollInterval:   pollInterval,
		reloadCallback: reloadCallback,
		logger:         logger,
		stopChan:       make(chan struct{}),
	}
}

// Start launches the polling goroutine.
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()

	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	vw.running = true
	go vw.poll()

	if vw.logger != nil {
		vw.logger.Info("Vault watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	}
	return nil
}

// Stop terminates the polling goroutine. Stopping a watcher that never
// started is a no-op.
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()

	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false

	if vw.logger != nil {
		vw.logger.Info("Vault watcher stopped")
	}
	return nil
}

func (vw *VaultWatcher) poll() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			vw.checkOnce()
		case <-vw.stopChan:
			return
		}
	}
}

// checkOnce performs a single poll cycle: detect a version change, fetch the
// new material, and hand it to the callback. Fetch failures are reported to
// the callback so the certificate manager can count them.
func (vw *VaultWatcher) checkOnce() {
	changed, err := vw.versionAdvanced()
	if err != nil {
		if vw.logger != nil {
			vw.logger.LogError(err, "Failed to check Vault for updates")
		}
		return
	}
	if !changed {
		return
	}

	if vw.logger != nil {
		vw.logger.Info("Vault secret changed, fetching new certificate data...")
	}

	data, err := vw.fetchCertData()
	if err != nil {
		if vw.logger != nil {
			vw.logger.LogError(err, "Failed to fetch new certificate data from Vault")
		}
		vw.reloadCallback(nil, err)
		return
	}

	if vw.logger != nil {
		vw.logger.Info("New certificate data fetched from Vault, triggering reload")
	}
	vw.reloadCallback(data, nil)
}

// versionAdvanced reads secret metadata and reports whether the version moved
// past the last one seen.
func (vw *VaultWatcher) versionAdvanced() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return true, nil
	}
	return false, nil
}

// fetchCertData pulls the cert, key, and ca fields from the secret. Missing
// fields are left empty rather than treated as errors.
func (vw *VaultWatcher) fetchCertData() (*CertificateData, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch new TLS data from vault: %w", err)
	}

	data := &CertificateData{}
	if cert, ok := secret.Data["cert"].(string); ok {
		data.CertContent = cert
	}
	if key, ok := secret.Data["key"].(string); ok {
		data.KeyContent = key
	}
	if ca, ok := secret.Data["ca"].(string); ok {
		data.CAContent = ca
	}
	return data, nil
}

// Status reports watcher state for the health endpoint.
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()

	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
}
