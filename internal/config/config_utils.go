package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks fills in values that depend on other settings or on
// environment variables viper does not bind directly.
func (c *Config) applyFallbacks() {
	c.applyEmbeddingFallbacks()

	// Viper binds scalar env vars; the API key list arrives comma-separated.
	if len(c.Server.APIKeys) == 0 {
		if raw := os.Getenv("RESUMATCH_SERVER_APIKEYS"); raw != "" {
			keys := strings.Split(raw, ",")
			for i := range keys {
				keys[i] = strings.TrimSpace(keys[i])
			}
			c.Server.APIKeys = keys
		}
	}

	if c.Server.TLS.Mode == "mutual" && c.Server.TLS.ClientAuthPolicy == "" {
		c.Server.TLS.ClientAuthPolicy = "require"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}

	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = defaultServiceInstance(c.Observability.ServiceName)
	}
	// Debug runs get console telemetry without extra flags.
	if c.App.LogLevel == "debug" {
		c.Observability.ConsoleOutput = true
	}
}

// defaultServiceInstance derives an instance id from the hostname.
func defaultServiceInstance(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return serviceName + "-1"
}

// watchedEnvVars are the variables reported in the startup summary.
var watchedEnvVars = []string{
	"RESUMATCH_EMBEDDING_APIKEY",
	"RESUMATCH_EMBEDDING_PROVIDER",
	"RESUMATCH_EMBEDDING_MODEL",
	"RESUMATCH_SERVER_PORT",
	"RESUMATCH_SERVER_HOST",
	"RESUMATCH_APP_LOGLEVEL",
	"RESUMATCH_VAULT_ENABLED",
	"GEMINI_API_KEY",
	"OPENAI_API_KEY",
}

// logConfigurationSources summarizes where the effective configuration came
// from. Secret values are masked, their presence is still recorded.
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	log.Println("[CONFIG] Environment variables:")
	found := false
	for _, name := range watchedEnvVars {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		found = true
		if strings.Contains(strings.ToLower(name), "key") {
			log.Printf("[CONFIG]   %s=***MASKED***", name)
		} else {
			log.Printf("[CONFIG]   %s=%s", name, value)
		}
	}
	if !found {
		log.Println("[CONFIG]   None set")
	}

	log.Printf("[CONFIG] Server: %s:%s (TLS mode: %s)",
		c.Server.Host, c.Server.Port, c.Server.TLS.Mode)
	log.Printf("[CONFIG] Log level: %s, Vault: %t, Observability: %t",
		c.App.LogLevel, c.Vault.Enabled, c.Observability.Enabled)
	if c.Embedding.Enabled() {
		log.Printf("[CONFIG] Semantic matching: enabled (provider: %s, model: %s, API key %s)",
			c.Embedding.Provider, c.Embedding.Model, secretPresence(c.Embedding.APIKey))
	} else {
		log.Println("[CONFIG] Semantic matching: disabled (keyword scoring only)")
	}
	log.Println("[CONFIG] =====================================")
}

func secretPresence(secret string) string {
	if secret != "" {
		return "configured"
	}
	return "not set"
}
