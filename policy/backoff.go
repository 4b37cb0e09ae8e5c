package policy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff defaults.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// BackoffPolicy retries failed operations with bounded exponential backoff.
//
// Errors rejected by the Retryable classifier, and context errors, stop
// retrying immediately and are returned as-is.
type BackoffPolicy struct {
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	retryable       func(error) bool

	rec statsRecorder
}

// NewBackoff creates a backoff policy. A nil MaxRetries and zero
// intervals take the package defaults.
func NewBackoff(cfg Config) *BackoffPolicy {
	p := &BackoffPolicy{
		maxRetries:      DefaultMaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		retryable:       cfg.Retryable,
	}
	if cfg.MaxRetries != nil {
		p.maxRetries = *cfg.MaxRetries
	}
	if p.initialInterval <= 0 {
		p.initialInterval = DefaultInitialInterval
	}
	if p.maxInterval <= 0 {
		p.maxInterval = DefaultMaxInterval
	}
	if p.retryable == nil {
		p.retryable = func(err error) bool { return !isContextErr(err) }
	}
	return p
}

// Do runs op, retrying retryable failures up to MaxRetries times.
func (p *BackoffPolicy) Do(ctx context.Context, op func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.initialInterval
	expBackoff.MaxInterval = p.maxInterval
	// Bounded by retry count, not wall clock.
	expBackoff.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		p.rec.incAttempt(attempt > 0)
		attempt++

		err := op()
		if err != nil && (isContextErr(err) || !p.retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, p.maxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		p.rec.incFailures()
		return err
	}
	return nil
}

// Name returns "backoff".
func (p *BackoffPolicy) Name() string { return NameBackoff }

// Stats returns a snapshot of attempts, retries and failures.
func (p *BackoffPolicy) Stats() Stats { return p.rec.snapshot() }

// MaxRetries returns the configured retry bound.
func (p *BackoffPolicy) MaxRetries() uint64 { return p.maxRetries }

var _ Retry = (*BackoffPolicy)(nil)
