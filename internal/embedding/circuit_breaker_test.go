package embedding

import (
	"fmt"
	"testing"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

func breakerConfig(maxRequests, minRequests uint32, threshold float64) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider: "gemini",
		Model:    "gemini-embedding-001",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      maxRequests,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakersPerProvider(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	breakers := map[string]*EmbeddingCircuitBreaker{
		"gemini": NewEmbeddingCircuitBreaker("gemini", breakerConfig(3, 3, 0.6), logger),
		"openai": NewEmbeddingCircuitBreaker("openai", breakerConfig(5, 2, 0.7), logger),
		"ollama": NewEmbeddingCircuitBreaker("ollama", breakerConfig(4, 5, 0.5), logger),
	}

	for provider, cb := range breakers {
		t.Run(provider, func(t *testing.T) {
			stats := cb.GetStats()
			if name, _ := stats["name"].(string); name != "Embedding-"+provider {
				t.Errorf("Expected breaker name %q, got %q", "Embedding-"+provider, name)
			}
			if state, _ := stats["state"].(string); state != "closed" {
				t.Errorf("Expected initial state 'closed', got %q", state)
			}
			if enabled, _ := stats["enabled"].(bool); !enabled {
				t.Error("Circuit breaker should be enabled")
			}
			if !cb.IsHealthy() {
				t.Error("Circuit breaker should be healthy initially")
			}
		})
	}

	if breakers["gemini"] == breakers["openai"] || breakers["gemini"] == breakers["ollama"] {
		t.Error("Each provider should get its own circuit breaker instance")
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	// Two requests at full failure ratio satisfy minRequests=2, threshold=0.5
	cb := NewEmbeddingCircuitBreaker("gemini", breakerConfig(1, 2, 0.5), logger)

	calls := 0
	failing := func() ([]float32, error) {
		calls++
		return nil, fmt.Errorf("backend down")
	}

	for range 2 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected failure from backend")
		}
	}
	if calls != 2 {
		t.Fatalf("Expected 2 backend calls, got %d", calls)
	}
	if cb.IsHealthy() {
		t.Error("Circuit breaker should be open after repeated failures")
	}

	// An open circuit rejects without reaching the backend
	if _, err := cb.Execute(failing); err == nil {
		t.Fatal("Expected rejection from open circuit breaker")
	}
	if calls != 2 {
		t.Errorf("Open breaker should not invoke the backend, got %d calls", calls)
	}

	if state, _ := cb.GetStats()["state"].(string); state != "open" {
		t.Errorf("Expected state 'open', got %q", state)
	}
}

func TestModelCircuitBreakerTripsLater(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	// Tight embed thresholds do not apply to model checks, which use a
	// fixed floor of five requests at an 0.8 failure ratio
	cb := NewModelCircuitBreaker("gemini", breakerConfig(1, 2, 0.5), logger)

	failing := func() (*ModelInfo, error) {
		return nil, fmt.Errorf("metadata endpoint down")
	}

	for range 4 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected failure from backend")
		}
	}
	if !cb.IsHealthy() {
		t.Error("Model circuit breaker should stay closed below five requests")
	}

	if _, err := cb.Execute(failing); err == nil {
		t.Fatal("Expected failure from backend")
	}
	if cb.IsHealthy() {
		t.Error("Model circuit breaker should open after five straight failures")
	}
}

func TestModelCircuitBreakerNaming(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	cb := NewModelCircuitBreaker("ollama", breakerConfig(3, 3, 0.6), logger)
	if cb == nil {
		t.Fatal("Model circuit breaker should not be nil")
	}

	stats := cb.GetStats()
	if name, _ := stats["name"].(string); name != "Embedding-Model-ollama" {
		t.Errorf("Expected breaker name 'Embedding-Model-ollama', got %q", name)
	}
	if !cb.IsHealthy() {
		t.Error("Model circuit breaker should be healthy initially")
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	disabledConfig := &config.EmbeddingConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled: false,
		},
	}

	if cb := NewEmbeddingCircuitBreaker("gemini", disabledConfig, logger); cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}
	if cb := NewModelCircuitBreaker("gemini", disabledConfig, logger); cb != nil {
		t.Fatal("Model circuit breaker should be nil when disabled")
	}
}

func TestNilCircuitBreakerPassesThrough(t *testing.T) {
	// A nil breaker executes the function directly and reports healthy

	var cb *EmbeddingCircuitBreaker

	result, err := cb.Execute(func() ([]float32, error) {
		return []float32{0.1, 0.2}, nil
	})
	if err != nil {
		t.Fatalf("Execute on nil breaker failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected passthrough result of length 2, got %d", len(result))
	}

	if !cb.IsHealthy() {
		t.Error("Nil circuit breaker should report healthy")
	}

	stats := cb.GetStats()
	if enabled, ok := stats["enabled"].(bool); !ok || enabled {
		t.Errorf("Expected enabled false for nil breaker, got %v", stats["enabled"])
	}
}
