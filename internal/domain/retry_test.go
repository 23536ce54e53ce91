package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsAtMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond}
	boom := Transient("call", errors.New("connection reset"))

	attempts := 0
	err := policy.Do(context.Background(), IsTransient, func(context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected final error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryPolicyDoesNotRetryNonTransient(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Interval: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), IsTransient, func(context.Context) error {
		attempts++
		return ErrTransactionNotFound
	})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("unexpected error %v", err)
	}
	if attempts != 1 {
		t.Fatalf("a ledger answer must not be retried, attempts = %d", attempts)
	}
}

func TestRetryPolicySucceedsMidway(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, Interval: time.Millisecond, Backoff: 2}

	attempts := 0
	err := policy.Do(context.Background(), IsTransient, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Transient("call", errors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryPolicyZeroValueRunsOnce(t *testing.T) {
	attempts := 0
	err := RetryPolicy{}.Do(context.Background(), IsTransient, func(context.Context) error {
		attempts++
		return Transient("call", errors.New("flaky"))
	})
	if err == nil || attempts != 1 {
		t.Fatalf("zero policy must run exactly once, attempts = %d err = %v", attempts, err)
	}
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 5, Interval: time.Hour}
	attempts := 0
	err := policy.Do(ctx, IsTransient, func(context.Context) error {
		attempts++
		return Transient("call", errors.New("timeout"))
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop retries, attempts = %d", attempts)
	}
}
