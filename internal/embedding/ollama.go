package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"resumatch/internal/config"
	resumatchErrors "resumatch/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	ollamaEmbedEndpoint  = "/api/embed"
)

// ollamaEmbedRequest is the request payload for the Ollama embed API
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response payload from the Ollama embed API
type ollamaEmbedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	Error           string      `json:"error"`
}

// ollamaStatusError carries a non-200 HTTP response status and body
type ollamaStatusError struct {
	code int
	body string
}

func (e *ollamaStatusError) Error() string {
	return fmt.Sprintf("ollama API error (status %d): %s", e.code, e.body)
}

// OllamaProvider implements Provider for a local Ollama instance
type OllamaProvider struct {
	baseURL        string
	httpClient     *http.Client
	config         *config.EmbeddingConfig
	circuitBreaker *EmbeddingCircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *resumatchErrors.Logger
}

// Ensure OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a new Ollama embedding provider.
// Ollama runs locally and needs no API key.
func NewOllamaProvider(cfg *config.EmbeddingConfig, logger *resumatchErrors.Logger) (*OllamaProvider, error) {
	baseURL := defaultOllamaBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OllamaProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:         cfg,
		circuitBreaker: NewEmbeddingCircuitBreaker("ollama", cfg, logger),
		modelBreaker:   NewModelCircuitBreaker("ollama", cfg, logger),
		logger:         logger,
	}, nil
}

// Name implements Provider
func (p *OllamaProvider) Name() string { return "ollama" }

// Embed implements Provider using the Ollama embed API
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("resumatch.embedding.ollama")
	ctx, span := tracer.Start(ctx, "ollama.embed")
	defer span.End()

	span.SetAttributes(
		attribute.String("embedding.provider", "ollama"),
		attribute.String("embedding.model", p.config.Model),
		attribute.Int("embedding.text_length", len(text)),
	)

	embedCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	vector, err := p.circuitBreaker.Execute(func() ([]float32, error) {
		return executeWithRetry(embedCtx, p.logger, p.config.MaxRetries, "ollama.embed", p.isRetryableError, func() ([]float32, error) {
			return p.embedOnce(embedCtx, text)
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

// embedOnce performs a single embed request against the Ollama HTTP API
func (p *OllamaProvider) embedOnce(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{
		Model: p.config.Model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ollamaEmbedEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ollamaStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama API error: %s", out.Error)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, resumatchErrors.NewEmbeddingError(resumatchErrors.ErrCodeEmbeddingFailed,
			"Ollama returned an empty embedding", nil)
	}
	return out.Embeddings[0], nil
}

// GetModelInfo probes the embed endpoint to report model availability
func (p *OllamaProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      p.config.Model,
		Provider:  "ollama",
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	info, err := p.modelBreaker.Execute(func() (*ModelInfo, error) {
		vector, err := p.embedOnce(checkCtx, "ping")
		if err != nil {
			return nil, err
		}
		return &ModelInfo{
			Name:       p.config.Model,
			Provider:   "ollama",
			Dimensions: len(vector),
			Available:  true,
		}, nil
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		p.logger.Warn("Model availability check failed",
			"model", p.config.Model,
			"provider", "ollama",
			"error", err.Error())
		return modelInfo
	}

	p.logger.Debug("Model availability check successful",
		"model", p.config.Model,
		"provider", "ollama",
		"dimensions", info.Dimensions)

	return info
}

// isRetryableError treats network errors and retryable HTTP statuses as
// transient; everything else fails immediately.
func (p *OllamaProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *ollamaStatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.code)
	}
	return false
}

// GetCircuitBreakerStats reports the state of both breakers for /stats.
func (p *OllamaProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"embed_operations": p.circuitBreaker.GetStats(),
		"model_operations": p.modelBreaker.GetStats(),
		"overall_healthy":  p.circuitBreaker.IsHealthy() && p.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider
func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
