package config

import (
	"fmt"
	"os"
)

// defaultModels maps each provider to the embedding model used when the
// configuration names none.
var defaultModels = map[string]string{
	"gemini": "text-embedding-004",
	"openai": "text-embedding-3-small",
	"ollama": "nomic-embed-text",
}

// Enabled reports whether a semantic embedding provider is configured.
func (e *EmbeddingConfig) Enabled() bool {
	return e.Provider != "" && e.Provider != "none"
}

// applyEmbeddingFallbacks fills the API key from provider-native environment
// variables and resolves the per-provider default model.
func (c *Config) applyEmbeddingFallbacks() {
	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case "gemini":
			c.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultModels[c.Embedding.Provider]
	}
}

// validateEmbedding checks the embedding provider configuration. Provider
// "none" needs no credentials; remote providers must be fully specified so a
// configured-but-unusable provider fails at startup instead of at scoring time.
func (c *Config) validateEmbedding() error {
	e := c.Embedding

	switch e.Provider {
	case "", "none":
		return nil
	case "gemini", "openai":
		if e.APIKey == "" {
			return fmt.Errorf("embedding API key is required for provider %q (set RESUMATCH_EMBEDDING_APIKEY environment variable)", e.Provider)
		}
	case "ollama":
		// Local provider, no API key needed
	default:
		return fmt.Errorf("invalid embedding provider: %s (must be 'none', 'gemini', 'openai', or 'ollama')", e.Provider)
	}

	if e.Timeout <= 0 {
		return fmt.Errorf("embedding timeout must be positive")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("embedding maxRetries cannot be negative")
	}

	return nil
}
