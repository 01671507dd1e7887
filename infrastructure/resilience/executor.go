// Package resilience wraps coordinator sync-protocol calls (push, pull,
// claim, heartbeat, release, status) with fortify's bulkhead, circuit
// breaker, and retry patterns (§10, §12's "resilient coordinator calls").
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Call is a coordinator-facing operation to run under resilience
// patterns. T is whatever response shape the call produces (e.g. a
// decoded JSON body for push/pull/claim).
type Call[T any] func(ctx context.Context) (T, error)

// Executor runs Calls through bulkhead, timeout, circuit breaker, and
// retry, in that order — the same composition the teacher's
// resilience.Executor applies to tool execution, here applied to HTTP
// calls against the coordinator instead.
type Executor[T any] struct {
	bulkhead bulkhead.Bulkhead[T]
	breaker  circuitbreaker.CircuitBreaker[T]
	retry    retry.Retry[T]
	timeout  time.Duration
}

// Config configures an Executor.
type Config struct {
	// MaxConcurrent limits concurrent calls (per sync operation).
	MaxConcurrent int
	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration
	// RetryMaxAttempts is the maximum number of retry attempts, per
	// §4.10's "linear backoff, up to 3 attempts" for status-sync pushes.
	RetryMaxAttempts int
	// RetryInitialDelay is the delay before the first retry.
	RetryInitialDelay time.Duration
	// DefaultTimeout bounds one Execute call, all retry attempts included.
	DefaultTimeout time.Duration
}

// DefaultConfig returns §4.10's retry defaults: up to 3 attempts,
// roughly 1s apart.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       time.Second,
		DefaultTimeout:          10 * time.Second,
	}
}

// NewExecutor builds an Executor for response type T.
func NewExecutor[T any](cfg Config) *Executor[T] {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	threshold := cfg.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}

	return &Executor[T]{
		bulkhead: bulkhead.New[T](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    cfg.CircuitBreakerTimeout,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[T](retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			// Multiplier 1 keeps the exponential schedule flat: every
			// retry waits InitialDelay. The wait does not grow with the
			// attempt number.
			Multiplier: 1.0,
		}),
		timeout: cfg.DefaultTimeout,
	}
}

// Execute runs call through the full bulkhead → timeout → circuit
// breaker → retry chain.
func (e *Executor[T]) Execute(ctx context.Context, call Call[T]) (T, error) {
	return e.bulkhead.Execute(ctx, func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (T, error) {
			return e.retry.Do(ctx, call)
		})
	})
}

// ExecuteSimple runs call with no resilience patterns applied, for
// calls the caller has already decided must not be retried (e.g. a
// release after an intervention abort, where a second attempt could
// race a different node's claim).
func (e *Executor[T]) ExecuteSimple(ctx context.Context, call Call[T]) (T, error) {
	return call(ctx)
}

// State returns the circuit breaker's current state.
func (e *Executor[T]) State() circuitbreaker.State {
	return e.breaker.State()
}
