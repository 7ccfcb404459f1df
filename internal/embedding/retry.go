package embedding

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"time"

	"resumatch/internal/errors"
)

// executeWithRetry runs fn up to maxRetries+1 times, sleeping between
// attempts. isRetryable decides which errors are worth another attempt; the
// rest stop the loop immediately.
func executeWithRetry(ctx context.Context, logger *errors.Logger, maxRetries int, operation string, isRetryable func(error) bool, fn func() ([]float32, error)) ([]float32, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying embedding operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(retryBackoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		attempts++
		if err == nil {
			if attempt > 0 {
				logger.Info("Embedding operation succeeded after retry",
					"operation", operation,
					"attempts", attempts)
			}
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	return nil, fmt.Errorf("operation '%s' failed after %d attempt(s): %w", operation, attempts, lastErr)
}

// retryBackoff returns the delay before retry attempt n: exponential from one
// second with up to 10% random jitter, capped at 30 seconds.
func retryBackoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitterMax := big.NewInt(int64(float64(base) * 0.1))
	jitter, _ := rand.Int(rand.Reader, jitterMax)
	return min(base+time.Duration(jitter.Int64()), 30*time.Second)
}

// isRetryableStatus reports whether an HTTP status code should trigger a retry.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
