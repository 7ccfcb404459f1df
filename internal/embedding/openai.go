package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"

	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIProvider implements Provider for OpenAI embedding models
type OpenAIProvider struct {
	client         openai.Client
	config         *config.EmbeddingConfig
	circuitBreaker *EmbeddingCircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *resumatchErrors.Logger
}

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI embedding provider
func NewOpenAIProvider(cfg *config.EmbeddingConfig, logger *resumatchErrors.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, resumatchErrors.NewConfigError(resumatchErrors.ErrCodeMissingAPIKey,
			"OpenAI embedding provider requires an API key", nil)
	}

	// Retries are handled by executeWithRetry, so the SDK retry loop stays off
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:         openai.NewClient(opts...),
		config:         cfg,
		circuitBreaker: NewEmbeddingCircuitBreaker("openai", cfg, logger),
		modelBreaker:   NewModelCircuitBreaker("openai", cfg, logger),
		logger:         logger,
	}, nil
}

// Name implements Provider
func (o *OpenAIProvider) Name() string { return "openai" }

// Embed implements Provider using the OpenAI embeddings API
func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("resumatch.embedding.openai")
	ctx, span := tracer.Start(ctx, "openai.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embedding.provider", "openai"),
		attribute.String("embedding.model", o.config.Model),
		attribute.Int("embedding.text_length", len(text)),
	)

	embedCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	vector, err := o.circuitBreaker.Execute(func() ([]float32, error) {
		return executeWithRetry(embedCtx, o.logger, o.config.MaxRetries, "openai.embed", o.isRetryableError, func() ([]float32, error) {
			resp, err := o.client.Embeddings.New(embedCtx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
				Model: openai.EmbeddingModel(o.config.Model),
			})
			if err != nil {
				return nil, err
			}
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, resumatchErrors.NewEmbeddingError(resumatchErrors.ErrCodeEmbeddingFailed,
					"OpenAI returned an empty embedding", nil)
			}
			// The API returns float64 values, vectors are kept as float32
			out := make([]float32, len(resp.Data[0].Embedding))
			for i, v := range resp.Data[0].Embedding {
				out[i] = float32(v)
			}
			return out, nil
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

// GetModelInfo verifies the configured model exists via the models endpoint.
func (o *OpenAIProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      o.config.Model,
		Provider:  "openai",
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	info, err := o.modelBreaker.Execute(func() (*ModelInfo, error) {
		model, err := o.client.Models.Get(checkCtx, o.config.Model)
		if err != nil {
			return nil, err
		}
		return &ModelInfo{
			Name:      model.ID,
			Provider:  "openai",
			Available: true,
		}, nil
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		o.logger.Warn("Model availability check failed",
			"model", o.config.Model,
			"provider", "openai",
			"error", err.Error())
		return modelInfo
	}

	o.logger.Debug("Model availability check successful",
		"model", o.config.Model,
		"provider", "openai")

	return info
}

// isRetryableError treats network errors and retryable OpenAI API statuses
// as transient; everything else fails immediately.
func (o *OpenAIProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.StatusCode)
	}
	return false
}

// GetCircuitBreakerStats reports the state of both breakers for /stats.
func (o *OpenAIProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"embed_operations": o.circuitBreaker.GetStats(),
		"model_operations": o.modelBreaker.GetStats(),
		"overall_healthy":  o.circuitBreaker.IsHealthy() && o.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider
func (o *OpenAIProvider) Close() error {
	return nil
}
