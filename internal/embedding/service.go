package embedding

import (
	"context"
	"fmt"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

// Service handles embedding operations for semantic matching.
// A nil Service means semantic matching is off and callers fall back to
// keyword scoring.
type Service struct {
	Provider Provider
}

// NewService creates a new embedding service instance. It returns a nil
// service without error when the provider is "none" or unset.
func NewService(cfg *config.EmbeddingConfig, logger *errors.Logger) (*Service, error) {
	if cfg == nil || cfg.Provider == "" || cfg.Provider == "none" {
		logger.Info("Semantic matching disabled, using keyword scoring only")
		return nil, nil
	}

	var provider Provider
	var err error

	logger.Debug("Initializing embedding service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries)

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, logger)
	case "openai":
		provider, err = NewOpenAIProvider(cfg, logger)
	case "ollama":
		provider, err = NewOllamaProvider(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported embedding provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingUnavailable,
			"Failed to create embedding provider", err)
	}

	return &Service{Provider: provider}, nil
}

// Enabled reports whether semantic matching is available
func (s *Service) Enabled() bool {
	return s != nil && s.Provider != nil
}

// GetModelInfo returns information about the embedding model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	if !s.Enabled() {
		return nil
	}
	return s.Provider.GetModelInfo(ctx)
}

// GetCircuitBreakerStats reports circuit breaker state for the active
// provider, or nil when semantic matching is off.
func (s *Service) GetCircuitBreakerStats() map[string]any {
	if !s.Enabled() {
		return nil
	}
	type breakerStats interface {
		GetCircuitBreakerStats() map[string]any
	}
	if p, ok := s.Provider.(breakerStats); ok {
		return p.GetCircuitBreakerStats()
	}
	return nil
}

// Close releases provider resources
func (s *Service) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.Provider.Close()
}
