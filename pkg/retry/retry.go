// pkg/retry/retry.go - functions for retrying actions with backoff.

package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/managedwinget/pkg/logging"
)

// RetryConfig defines the configuration for retry attempts.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// nonRetryableError marks an error that must not be retried.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable wraps err so Retry returns it immediately instead of
// attempting again.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// Retry retries a given function with backoff. A nil return from action stops
// immediately; an error wrapped by NonRetryable is returned without further
// attempts.
func Retry(config RetryConfig, action func() error) error {
	interval := config.InitialInterval

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err := action()
		if err == nil {
			return nil
		}
		lastErr = err

		var nonRetryable *nonRetryableError
		if errors.As(err, &nonRetryable) {
			logging.Warn("Non-retryable error encountered", "error", err)
			return err
		}

		if attempt < config.MaxRetries {
			logging.Warn(fmt.Sprintf("Attempt %d/%d failed: %v. Retrying in %s...",
				attempt, config.MaxRetries, err, interval))
			time.Sleep(interval)
			interval = time.Duration(float64(interval) * config.Multiplier)
		} else {
			logging.Warn(fmt.Sprintf("Attempt %d/%d failed: %v. No more retries.",
				attempt, config.MaxRetries, err))
		}
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, lastErr)
}
