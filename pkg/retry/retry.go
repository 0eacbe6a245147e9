package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the attempt budget for generic transient errors
	MaxAttempts int
	// RateLimitAttempts is the (usually larger) attempt budget for
	// rate-limited calls; falls back to MaxAttempts when zero
	RateLimitAttempts int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context for cancellation
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration matching the remote API
// failure policy: 5 attempts for transient errors, 8 for rate limiting,
// exponential backoff doubling from 1s capped at 60s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       5,
		RateLimitAttempts: 8,
		Backoff:           DefaultExponentialBackoff(),
		RetryIf:           DefaultRetryIf,
		Context:           context.Background(),
		Logger:            logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Default to retrying unknown errors
	return true
}

// budgetFor returns the attempt budget for the given error
func (cfg *Config) budgetFor(err error) int {
	if errs.IsRateLimited(err) && cfg.RateLimitAttempts > 0 {
		return cfg.RateLimitAttempts
	}
	return cfg.MaxAttempts
}

// delayFor returns the wait before the next attempt, preferring a
// server-provided Retry-After hint over the backoff schedule.
func (cfg *Config) delayFor(attempt int, err error) time.Duration {
	if hint := errs.RetryAfterHint(err); hint > 0 {
		return hint
	}
	return cfg.Backoff.NextDelay(attempt)
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	attempt := 0

	for {
		attempt++

		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}

		budget := cfg.budgetFor(err)
		if budget > 0 && attempt >= budget {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("retry budget exhausted", map[string]interface{}{
					"attempts":   attempt,
					"last_error": lastErr.Error(),
				})
			}
			return fmt.Errorf("retry budget (%d attempts) exhausted: %w", budget, lastErr)
		}

		delay := cfg.delayFor(attempt, err)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":  attempt,
				"error":    err.Error(),
				"delay_ms": delay.Milliseconds(),
			})
		}

		if err := Wait(cfg.Context, delay); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"attempt": attempt,
					"reason":  err.Error(),
				})
			}
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}

// WithContext returns a copy of the config bound to ctx for cancellation
func (cfg *Config) WithContext(ctx context.Context) *Config {
	newConfig := *cfg
	newConfig.Context = ctx
	return &newConfig
}

// Retrier provides a reusable retry mechanism
type Retrier struct {
	config *Config
}

// NewRetrier creates a new retrier with the given configuration
func NewRetrier(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Retrier{config: cfg}
}

// Do executes an operation with retry logic
func (r *Retrier) Do(op Operation) error {
	return Do(op, r.config)
}

// WithContext returns a new retrier with updated context
func (r *Retrier) WithContext(ctx context.Context) *Retrier {
	newConfig := *r.config
	newConfig.Context = ctx
	return &Retrier{config: &newConfig}
}
