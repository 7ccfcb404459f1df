package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// modelCheckTimeout bounds model availability checks in health endpoints
const modelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini embedding models
type GeminiProvider struct {
	client         *genai.Client
	config         *config.EmbeddingConfig
	circuitBreaker *EmbeddingCircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *resumatchErrors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini embedding provider
func NewGeminiProvider(cfg *config.EmbeddingConfig, logger *resumatchErrors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, resumatchErrors.NewConfigError(resumatchErrors.ErrCodeMissingAPIKey,
			"Gemini embedding provider requires an API key", nil)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, resumatchErrors.NewEmbeddingError(resumatchErrors.ErrCodeEmbeddingFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		circuitBreaker: NewEmbeddingCircuitBreaker("gemini", cfg, logger),
		modelBreaker:   NewModelCircuitBreaker("gemini", cfg, logger),
		logger:         logger,
	}, nil
}

// Name implements Provider
func (g *GeminiProvider) Name() string { return "gemini" }

// Embed implements Provider using the Gemini embedContent API
func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("resumatch.embedding.gemini")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embedding.provider", "gemini"),
		attribute.String("embedding.model", g.config.Model),
		attribute.Int("embedding.text_length", len(text)),
	)

	embedCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	vector, err := g.circuitBreaker.Execute(func() ([]float32, error) {
		return executeWithRetry(embedCtx, g.logger, g.config.MaxRetries, "gemini.embed", g.isRetryableError, func() ([]float32, error) {
			result, err := g.client.Models.EmbedContent(embedCtx, g.config.Model, genai.Text(text), nil)
			if err != nil {
				return nil, err
			}
			if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
				return nil, resumatchErrors.NewEmbeddingError(resumatchErrors.ErrCodeEmbeddingFailed,
					"Gemini returned an empty embedding", nil)
			}
			return result.Embeddings[0].Values, nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, resumatchErrors.NewEmbeddingError(resumatchErrors.ErrCodeEmbeddingFailed,
			"Failed to embed content", err)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("embedding.dimensions", len(vector)),
	)
	return vector, nil
}

// GetModelInfo probes the configured model through the Gemini model API.
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Provider:  "gemini",
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	info, err := g.modelBreaker.Execute(func() (*ModelInfo, error) {
		model, err := g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
		if err != nil {
			return nil, err
		}
		result := &ModelInfo{
			Name:      g.config.Model,
			Provider:  "gemini",
			Available: true,
		}
		if model.DisplayName != "" {
			result.DisplayName = model.DisplayName
		}
		if model.Version != "" {
			result.Version = model.Version
		}
		return result, nil
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", "gemini",
			"error", err.Error())
		return modelInfo
	}

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", "gemini",
		"display_name", info.DisplayName,
		"version", info.Version)

	return info
}

// isRetryableError treats network errors and retryable Google API statuses
// as transient; everything else fails immediately.
func (g *GeminiProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Code)
	}
	return false
}

// GetCircuitBreakerStats reports the state of both breakers for /stats.
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"embed_operations": g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider. The genai client holds no resources that need
// explicit release.
func (g *GeminiProvider) Close() error {
	return nil
}
