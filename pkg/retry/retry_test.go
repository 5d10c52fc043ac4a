package retry

import (
	"context"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Multiplier:  2,
	}
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeNetwork, "connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return errors.New(errors.CodeInvalidInput, "bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New(errors.CodeUnavailable, "503")
	})
	if errors.GetCode(err) != errors.CodeUnavailable {
		t.Errorf("got %v, want the last error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestOnce(t *testing.T) {
	calls := 0
	Do(context.Background(), Once(), func() error {
		calls++
		return errors.New(errors.CodeNetwork, "down")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	plain := errors.New(errors.CodeInvalidInput, "permanent by default")
	if IsRetryable(plain) {
		t.Fatal("invalid input should not be retryable")
	}
	if !IsRetryable(Retryable(plain)) {
		t.Error("Retryable should flip the classification")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Config{MaxAttempts: 0, InitialWait: time.Hour}, func() error {
		return errors.New(errors.CodeTimeout, "slow")
	})
	if err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{InitialWait: 100 * time.Millisecond, MaxWait: 250 * time.Millisecond, Multiplier: 2}
	if got := cfg.Backoff(1); got != 100*time.Millisecond {
		t.Errorf("Backoff(1) = %v", got)
	}
	if got := cfg.Backoff(5); got != 250*time.Millisecond {
		t.Errorf("Backoff(5) = %v, want cap", got)
	}
}
