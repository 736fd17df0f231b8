package retry

import (
	"fmt"
	"testing"
	"time"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, InitialInterval: time.Millisecond, Multiplier: 1.0}
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	err := Retry(fastConfig(3), func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("transient failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(fastConfig(3), func() error {
		attempts++
		return fmt.Errorf("persistent failure")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Retry(fastConfig(3), func() error {
		attempts++
		return NonRetryable(fmt.Errorf("hard failure"))
	})
	if err == nil {
		t.Fatal("expected non-retryable error to propagate")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestNonRetryableNil(t *testing.T) {
	if NonRetryable(nil) != nil {
		t.Error("NonRetryable(nil) should be nil")
	}
}
