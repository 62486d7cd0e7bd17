package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryProviderFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "serper.search", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("expected IsCircuitOpen for %v", err)
	}

	states := exec.Breakers()
	if len(states) != 1 || states[0].Operation != "qdrant.search" || states[0].State != "open" {
		t.Fatalf("unexpected breaker snapshot: %+v", states)
	}
}

func TestExecuteStopsRetryingWhenContextCanceled(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(ctx, "claude.messages", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last provider error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt after cancellation, got %d", attempts)
	}
}

func TestBreakersSortedByOperation(t *testing.T) {
	exec := NewExecutor(DefaultConfig())
	ok := func(context.Context) error { return nil }
	for _, op := range []string{"serper.search", "cross-encoder.rerank", "ollama.chat"} {
		if err := exec.Execute(context.Background(), op, ok, nil); err != nil {
			t.Fatalf("execute %s: %v", op, err)
		}
	}

	states := exec.Breakers()
	if len(states) != 3 {
		t.Fatalf("expected 3 breakers, got %d", len(states))
	}
	if states[0].Operation != "cross-encoder.rerank" || states[2].Operation != "serper.search" {
		t.Fatalf("breakers not sorted: %+v", states)
	}
	for _, st := range states {
		if st.State != "closed" {
			t.Fatalf("expected closed breaker, got %+v", st)
		}
	}
}

func TestBackoffGrowsToCapWithBoundedJitter(t *testing.T) {
	b := newBackoff(Config{
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     300 * time.Millisecond,
		RetryMultiplier:     2,
		RetryJitter:         0.5,
	})
	for i, ceiling := range []time.Duration{100, 200, 300, 300} {
		ceiling *= time.Millisecond
		wait := b.next()
		if wait > ceiling || wait < ceiling/2 {
			t.Fatalf("step %d: wait %s outside [%s, %s]", i, wait, ceiling/2, ceiling)
		}
	}
}

func TestNilExecutorRunsOnce(t *testing.T) {
	var exec *Executor
	calls := 0
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected one failing call, got calls=%d err=%v", calls, err)
	}
	if exec.Breakers() != nil {
		t.Fatal("expected no breakers for nil executor")
	}
}

func TestNormalizeClampsInvalidValues(t *testing.T) {
	cfg := Config{
		RetryInitialBackoff: 2 * time.Second,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     0.5,
		RetryJitter:         3,
		BreakerFailureRatio: 1.5,
	}.normalize()
	def := DefaultConfig()
	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("expected default attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("expected max backoff raised to initial, got %s", cfg.RetryMaxBackoff)
	}
	if cfg.RetryMultiplier != def.RetryMultiplier || cfg.RetryJitter != 1 || cfg.BreakerFailureRatio != def.BreakerFailureRatio {
		t.Fatalf("unexpected normalized config: %+v", cfg)
	}
}
