package resilience

import "time"

// Option configures a Config.
type Option func(*Config)

// WithMaxConcurrent sets the maximum concurrent calls.
func WithMaxConcurrent(n int) Option {
	return func(c *Config) { c.MaxConcurrent = n }
}

// WithCircuitBreakerThreshold sets the failure threshold for the circuit breaker.
func WithCircuitBreakerThreshold(n int) Option {
	return func(c *Config) { c.CircuitBreakerThreshold = n }
}

// WithCircuitBreakerTimeout sets how long the circuit stays open.
func WithCircuitBreakerTimeout(d time.Duration) Option {
	return func(c *Config) { c.CircuitBreakerTimeout = d }
}

// WithRetryAttempts sets the maximum retry attempts.
func WithRetryAttempts(n int) Option {
	return func(c *Config) { c.RetryMaxAttempts = n }
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryInitialDelay = d }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.DefaultTimeout = d }
}

// NewExecutorWithOptions builds an Executor from DefaultConfig plus opts.
func NewExecutorWithOptions[T any](opts ...Option) *Executor[T] {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewExecutor[T](cfg)
}
