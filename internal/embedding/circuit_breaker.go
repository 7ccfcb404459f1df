package embedding

import (
	"resumatch/internal/config"
	"resumatch/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// breaker guards provider calls that return T. A nil *breaker is how a
// disabled breaker travels through the code: Execute runs the call directly
// and the health and stats methods report the feature as off, so callers
// never check the config themselves.
type breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// EmbeddingCircuitBreaker guards embedding requests against a failing backend.
type EmbeddingCircuitBreaker = breaker[[]float32]

// ModelCircuitBreaker guards model availability checks.
type ModelCircuitBreaker = breaker[*ModelInfo]

// NewEmbeddingCircuitBreaker builds the breaker for a provider's embed calls,
// tripping once the configured request floor and failure ratio are both met.
// Returns nil when the circuit breaker is disabled in config.
func NewEmbeddingCircuitBreaker(providerName string, cfg *config.EmbeddingConfig, logger *errors.Logger) *EmbeddingCircuitBreaker {
	cb := cfg.CircuitBreaker
	return newBreaker[[]float32]("Embedding-"+providerName, cb, logger, func(counts gobreaker.Counts) bool {
		return counts.Requests >= cb.MinRequests && failureRatio(counts) >= cb.FailureThreshold
	})
}

// NewModelCircuitBreaker builds the breaker for model availability checks.
// Model metadata only feeds health reporting, so the trip condition is much
// more lenient than the configured embed thresholds.
func NewModelCircuitBreaker(providerName string, cfg *config.EmbeddingConfig, logger *errors.Logger) *ModelCircuitBreaker {
	return newBreaker[*ModelInfo]("Embedding-Model-"+providerName, cfg.CircuitBreaker, logger, func(counts gobreaker.Counts) bool {
		return counts.Requests >= 5 && failureRatio(counts) >= 0.8
	})
}

func newBreaker[T any](name string, cfg config.CircuitBreakerConfig, logger *errors.Logger, trip func(gobreaker.Counts) bool) *breaker[T] {
	if !cfg.Enabled {
		return nil
	}

	return &breaker[T]{cb: gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: trip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	})}
}

func failureRatio(counts gobreaker.Counts) float64 {
	if counts.Requests == 0 {
		return 0
	}
	return float64(counts.TotalFailures) / float64(counts.Requests)
}

// Execute runs fn under the breaker, or directly when the breaker is off.
func (b *breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// IsHealthy reports whether the circuit is closed. A disabled breaker never
// rejects calls, so it counts as healthy.
func (b *breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}

// GetStats reports breaker state and counters for the stats endpoint.
func (b *breaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}
