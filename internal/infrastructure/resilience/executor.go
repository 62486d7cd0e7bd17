package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor what to do with a failed attempt.
// Retryable errors are attempted again within the budget; RecordFailure
// errors count against the operation's breaker.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// BreakerState is a point-in-time view of one operation's circuit breaker.
type BreakerState struct {
	Operation           string `json:"operation"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Executor runs provider calls with retries and a circuit breaker per operation
// name (for example "qdrant.search" or "claude.messages"). A nil *Executor runs
// the call once.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if e == nil {
		return fn(ctx)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = recordAll
	}

	attempt := func() error { return e.retry(ctx, op, fn, classifier) }
	if !e.cfg.BreakerEnabled {
		return attempt()
	}
	_, err := e.breaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, attempt()
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classifier ErrorClassifier) error {
	schedule := newBackoff(e.cfg)
	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !classifier(lastErr).Retryable || attempt == e.cfg.RetryMaxAttempts {
			return lastErr
		}

		wait := schedule.next()
		slog.Warn("provider_retry",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", lastErr,
		)
		if !sleep(ctx, wait) {
			return lastErr
		}
	}
	return lastErr
}

// backoff yields capped exponential delays with up to RetryJitter of random
// reduction, so that callers sharing a provider do not retry in lockstep.
type backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
}

func newBackoff(cfg Config) *backoff {
	return &backoff{
		current:    cfg.RetryInitialBackoff,
		max:        cfg.RetryMaxBackoff,
		multiplier: cfg.RetryMultiplier,
		jitter:     cfg.RetryJitter,
	}
}

func (b *backoff) next() time.Duration {
	wait := min(b.current, b.max)
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)
	if b.jitter > 0 && wait > 0 {
		wait -= time.Duration(rand.Float64() * b.jitter * float64(wait))
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](e.breakerSettings(op, classifier))
	e.breakers[op] = cb
	return cb
}

func (e *Executor) breakerSettings(op string, classifier ErrorClassifier) gobreaker.Settings {
	minRequests := e.cfg.BreakerMinRequests
	ratio := e.cfg.BreakerFailureRatio
	return gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}
}

// Breakers reports every breaker created so far, ordered by operation name.
func (e *Executor) Breakers() []BreakerState {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BreakerState, 0, len(e.breakers))
	for op, cb := range e.breakers {
		counts := cb.Counts()
		out = append(out, BreakerState{
			Operation:           op,
			State:               cb.State().String(),
			Requests:            counts.Requests,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordAll(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
