// Package resilience provides transient-error retry for the weather and
// prediction gateway clients. The stores never retry; persistence errors
// surface to the caller directly.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	MaxAttempts int
	// InitialBackoff is the base delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
	// Multiplier scales the backoff after each attempt.
	Multiplier float64
	// JitterFraction adds random jitter as a fraction of the delay.
	JitterFraction float64
}

// DefaultRetryConfig matches the retry budget the original weather client
// used: a handful of quick attempts with sub-second initial backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// DoVal executes fn with retries on transient errors, returning the value
// from the first successful call. Context cancellation stops retries.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt >= cfg.MaxAttempts-1 {
			break
		}

		zap.L().Debug("retrying after transient error",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if max := float64(cfg.MaxBackoff); d > max {
		d = max
	}
	if cfg.JitterFraction > 0 {
		d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

// TransientError marks an error as safe to retry, carrying the HTTP status
// that triggered it when applicable.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the error chain contains a TransientError or
// a common network-level transient failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
