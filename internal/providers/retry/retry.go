// Package retry provides the shared backoff helper used by the Vertex AI
// provider adapters (vertexllm, vertexembed, vertexrerank), grounded on the
// donor's internal/gcpclient/retry.go. The byollm adapter does not use it.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrRateLimited is returned by callers' fn when the upstream responded 429
// or an equivalent resource-exhausted status, to distinguish it from a hard
// failure worth surfacing immediately.
var ErrRateLimited = errors.New("rate limited")

var delays = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

const ceiling = 4 * time.Second

// Do runs fn, retrying up to len(delays) additional times with increasing
// backoff (capped at ceiling) when the error looks transient.
func Do[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := append([]time.Duration{0}, delays...)
	for i, d := range attempts {
		if d > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(min(d, ceiling)):
			}
		}

		result, err := fn()
		if err == nil {
			if i > 0 {
				slog.Info("retry.Do: succeeded after retry", "operation", operation, "attempt", i+1)
			}
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if i < len(attempts)-1 {
			slog.Warn("retry.Do: retrying", "operation", operation, "attempt", i+1, "error", err)
		}
	}

	slog.Warn("retry.Do: exhausted retries", "operation", operation, "error", lastErr)
	return zero, lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "504", "RESOURCE_EXHAUSTED"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// IsRetryableStatus reports whether an HTTP status code should trigger a retry.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
