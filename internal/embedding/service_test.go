package embedding

import (
	"strings"
	"testing"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

func TestNewServiceDisabled(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	tests := []struct {
		name string
		cfg  *config.EmbeddingConfig
	}{
		{"nil config", nil},
		{"empty provider", &config.EmbeddingConfig{Provider: ""}},
		{"provider none", &config.EmbeddingConfig{Provider: "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.cfg, logger)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if svc != nil {
				t.Fatalf("Expected nil service, got %+v", svc)
			}
			if svc.Enabled() {
				t.Error("Expected nil service to report disabled")
			}
		})
	}
}

func TestNewServiceUnknownProvider(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	_, err = NewService(&config.EmbeddingConfig{Provider: "cohere"}, logger)
	if err == nil {
		t.Fatal("Expected error for unknown provider, got nil")
	}
	if !strings.Contains(err.Error(), "cohere") {
		t.Errorf("Expected provider name in error, got %v", err)
	}
	if !strings.Contains(err.Error(), errors.ErrCodeInvalidConfig) {
		t.Errorf("Expected %s error code, got %v", errors.ErrCodeInvalidConfig, err)
	}
}

func TestNewServiceOllama(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	svc, err := NewService(&config.EmbeddingConfig{
		Provider: "ollama",
		Model:    "nomic-embed-text",
		Timeout:  5 * time.Second,
	}, logger)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer svc.Close()

	if !svc.Enabled() {
		t.Fatal("Expected service to be enabled")
	}
	if svc.Provider.Name() != "ollama" {
		t.Errorf("Expected ollama provider, got %q", svc.Provider.Name())
	}

	stats := svc.GetCircuitBreakerStats()
	if stats == nil {
		t.Fatal("Expected circuit breaker stats, got nil")
	}
	if _, ok := stats["overall_healthy"]; !ok {
		t.Errorf("Expected overall_healthy in stats, got %v", stats)
	}
}

func TestNilServiceMethodsAreSafe(t *testing.T) {
	var svc *Service

	if svc.Enabled() {
		t.Error("Expected nil service to report disabled")
	}
	if info := svc.GetModelInfo(t.Context()); info != nil {
		t.Errorf("Expected nil model info, got %+v", info)
	}
	if stats := svc.GetCircuitBreakerStats(); stats != nil {
		t.Errorf("Expected nil stats, got %v", stats)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Expected nil close error, got %v", err)
	}
}
