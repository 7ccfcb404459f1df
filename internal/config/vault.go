package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"resumatch/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration.
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KV v2 paths the application reads secrets from.
type VaultSecrets struct {
	// APIKeys points at a secret whose "keys" field holds a comma-separated
	// list, e.g. "key1,key2,key3".
	APIKeys      string `mapstructure:"apiKeys"`
	EmbeddingKey string `mapstructure:"embeddingKey"` // embedding provider API key
	TLSCerts     string `mapstructure:"tlsCerts"`     // TLS certificate PEM content
}

// VaultClient wraps the Vault API client.
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient connects to Vault and verifies the connection. Returns
// (nil, nil) when Vault integration is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		return nil, nil
	}

	apiConfig := api.DefaultConfig()
	if config.Address != "" {
		apiConfig.Address = config.Address
	}

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if err := pingVault(client, config.Address, logger); err != nil {
		return nil, err
	}

	return &VaultClient{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// resolveVaultToken returns the token from config, or from the token file
// when no inline token is set. Whitespace around a file token is trimmed.
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		if logger != nil {
			logger.Debug("Reading Vault token from file", "file", config.TokenFile)
		}
		raw, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// pingVault issues a health request so misconfiguration fails at startup
// rather than at first secret read.
func pingVault(client *api.Client, address string, logger *errors.Logger) error {
	health, err := client.Sys().Health()
	if err != nil {
		return fmt.Errorf("failed to connect to vault: %w", err)
	}

	if logger != nil {
		logger.Info("Connected to Vault",
			"address", address,
			"version", health.Version,
			"sealed", health.Sealed)
	}
	return nil
}

// VaultSecret is a KVv2 secret's data together with its version metadata.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 reads a secret from a KV v2 store, unwrapping the nested data
// field and the version from the metadata.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	if vc.logger != nil {
		vc.logger.Debug("Reading secret from Vault", "path", path)
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	version, err := secretVersion(secret, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{
		Data:    data,
		Version: version,
	}, nil
}

// secretVersion digs the version out of KV v2 metadata. JSON decoding can
// deliver it as a number or a string depending on the transport.
func secretVersion(secret *api.Secret, path string) (int64, error) {
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}

	raw, ok := metadata["version"]
	if !ok {
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}

	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// GetStringSecret retrieves a single string field from a secret.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}

	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}

	if vc.logger != nil {
		vc.logger.Debug("String secret retrieved from Vault",
			"path", path,
			"key", key,
			"masked_value", maskSecretValue(str))
	}
	return str, nil
}

// maskSecretValue keeps only the outer characters of longer values so logs
// can confirm which secret was read without revealing it.
func maskSecretValue(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	if len(value) > 0 {
		return "****"
	}
	return value
}

// GetStringSliceSecret retrieves a comma-separated string field as a slice,
// trimming whitespace around each element.
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	value, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return []string{}, nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, len(parts))
	for i, part := range parts {
		result[i] = strings.TrimSpace(part)
	}
	return result, nil
}

// ApplyVaultSecrets overlays Vault-stored secrets onto the loaded config:
// server API keys, the embedding provider key, and TLS certificate content.
// Paths left empty in the config are skipped. No-op when Vault is disabled.
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		return nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	if err := client.applyAPIKeys(config); err != nil {
		return err
	}
	if err := client.applyEmbeddingKey(config); err != nil {
		return err
	}
	return client.applyTLSCerts(config)
}

// applyAPIKeys replaces the configured server API keys with the list stored
// in Vault.
func (vc *VaultClient) applyAPIKeys(config *Config) error {
	path := vc.config.Secrets.APIKeys
	if path == "" {
		return nil
	}

	apiKeys, err := vc.GetStringSliceSecret(path, "keys")
	if err != nil {
		return fmt.Errorf("failed to load API keys from vault: %w", err)
	}

	if len(apiKeys) == 0 {
		if vc.logger != nil {
			vc.logger.Warn("No API keys found in Vault", "path", path)
		}
		return nil
	}

	config.Server.APIKeys = apiKeys
	if vc.logger != nil {
		vc.logger.Info("API keys loaded from Vault", "count", len(apiKeys))
	}
	return nil
}

// applyEmbeddingKey overlays the embedding provider API key.
func (vc *VaultClient) applyEmbeddingKey(config *Config) error {
	path := vc.config.Secrets.EmbeddingKey
	if path == "" {
		return nil
	}

	key, err := vc.GetStringSecret(path, "api_key")
	if err != nil {
		return fmt.Errorf("failed to load embedding API key from vault: %w", err)
	}

	if key == "" {
		if vc.logger != nil {
			vc.logger.Warn("Empty embedding API key found in Vault", "path", path)
		}
		return nil
	}

	config.Embedding.APIKey = key
	if vc.logger != nil {
		vc.logger.Info("Embedding API key loaded from Vault")
	}
	return nil
}

// applyTLSCerts overlays inline TLS certificate content.
func (vc *VaultClient) applyTLSCerts(config *Config) error {
	path := vc.config.Secrets.TLSCerts
	if path == "" {
		return nil
	}

	tlsData, err := vc.GetSecretV2(path)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificates from vault: %w", err)
	}

	count := applyCertContent(config, tlsData, vc.logger)
	if err := rejectFilePathFields(tlsData); err != nil {
		return err
	}

	if vc.logger != nil {
		vc.logger.Info("TLS certificates loaded from Vault", "certificates_loaded", count)
	}
	return nil
}

// applyCertContent copies the cert, key, and ca fields into the TLS config
// and returns how many were present.
func applyCertContent(config *Config, tlsData *VaultSecret, logger *errors.Logger) int {
	count := 0
	count += copyPEMField(tlsData, "cert", &config.Server.TLS.CertContent, "TLS certificate content", logger)
	count += copyPEMField(tlsData, "key", &config.Server.TLS.KeyContent, "TLS private key content", logger)
	count += copyPEMField(tlsData, "ca", &config.Server.TLS.CAContent, "TLS CA certificate content", logger)
	return count
}

// copyPEMField copies one PEM field when present and non-empty, returning 1
// if it was applied.
func copyPEMField(tlsData *VaultSecret, key string, target *string, what string, logger *errors.Logger) int {
	content, ok := tlsData.Data[key].(string)
	if !ok || content == "" {
		return 0
	}

	*target = content
	if logger != nil {
		logger.Debug(what+" loaded from Vault", "content_length", len(content))
	}
	return 1
}

// rejectFilePathFields fails loudly when a secret still uses the retired
// *_file fields, which stored paths instead of content.
func rejectFilePathFields(tlsData *VaultSecret) error {
	for _, field := range []string{"cert_file", "key_file", "ca_file"} {
		if _, has := tlsData.Data[field]; !has {
			continue
		}
		return fmt.Errorf("vault TLS configuration error: '%s' field is no longer supported. Store certificate content in '%s' field instead",
			field, strings.TrimSuffix(field, "_file"))
	}
	return nil
}
