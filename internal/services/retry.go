package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed acquisitions.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultAcquireRetryPolicy retries an external probe twice with exponential
// backoff.
func DefaultAcquireRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      3 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// delay returns the wait before retry number attempt (0-based), with up to
// ±12.5% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.BackoffFactor
	}
	if ceiling := float64(p.MaxDelay); p.MaxDelay > 0 && d > ceiling {
		d = ceiling
	}
	if p.JitterEnabled {
		d += d * 0.25 * (rand.Float64() - 0.5)
	}
	return time.Duration(d)
}

// retryable reports whether another attempt could change the outcome.
func retryable(err error) bool {
	return !errors.Is(err, ErrBreakerOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!utils.IsValidationError(err) &&
		!isClientError(err)
}

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// isClientError reports a 4xx answer other than 408 and 429. The upstream
// answered, and a repeat would be refused the same way.
func isClientError(err error) bool {
	var sc statusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.HTTPStatus()
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

// ExecuteWithRetry runs operation until it succeeds, fails with a
// non-retryable error, or the policy is exhausted.
func ExecuteWithRetry(ctx context.Context, name string, policy RetryPolicy, logger *logrus.Logger, operation func(context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				logger.WithFields(logrus.Fields{
					"operation": name,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}
		lastErr = err
		if attempt == policy.MaxRetries || !retryable(err) {
			break
		}

		wait := policy.delay(attempt)
		logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt + 1,
			"error":     err.Error(),
			"delay":     wait,
		}).Warn("Operation failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// WithRetry wraps acquire so transient failures are retried under policy.
func WithRetry(acquire AcquireFunc, policy RetryPolicy, logger *logrus.Logger) AcquireFunc {
	if logger == nil {
		logger = logrus.New()
	}
	return func(ctx context.Context, city, state string) (float64, error) {
		var score float64
		err := ExecuteWithRetry(ctx, "geo_pool.acquire", policy, logger, func(ctx context.Context) error {
			var err error
			score, err = acquire(ctx, city, state)
			return err
		})
		return score, err
	}
}
