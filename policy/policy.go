// Package policy defines how a failed chunk transfer is retried.
//
// Every remote call issued for a chunk goes through a Retry. Strict, the
// default, makes exactly one attempt so that the first failure rejects the
// whole window. Backoff retries transport failures with bounded
// exponential backoff before giving up.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Retry runs a chunk operation under a retry strategy.
type Retry interface {
	// Do runs op until it succeeds, the strategy gives up, or ctx is done.
	// The returned error is the last error from op, or ctx.Err().
	Do(ctx context.Context, op func() error) error

	// Name returns the strategy name used in config and logs.
	Name() string

	// Stats returns an atomic snapshot of retry counters.
	Stats() Stats
}

// Stats represents retry observability metrics.
type Stats struct {
	// Attempts is the total number of op invocations.
	Attempts int64
	// Retries is the number of invocations after the first, per Do call.
	Retries int64
	// Failures is the number of Do calls that returned an error.
	Failures int64
}

// Strategy names.
const (
	NameStrict  = "strict"
	NameBackoff = "backoff"
)

// Config selects and parameterizes a strategy.
type Config struct {
	// Name is NameStrict or NameBackoff. Empty means strict.
	Name string
	// MaxRetries bounds retries after the first attempt (backoff only).
	// Nil means DefaultMaxRetries; zero means a single attempt.
	MaxRetries *uint64
	// InitialInterval is the first backoff delay (backoff only).
	InitialInterval time.Duration
	// MaxInterval caps each backoff delay (backoff only).
	MaxInterval time.Duration
	// Retryable reports whether an error may be retried (backoff only).
	// Nil means every error except context cancellation is retryable.
	Retryable func(error) bool
}

// New builds the strategy named by cfg.Name.
func New(cfg Config) (Retry, error) {
	switch cfg.Name {
	case "", NameStrict:
		return NewStrict(), nil
	case NameBackoff:
		return NewBackoff(cfg), nil
	default:
		return nil, fmt.Errorf("unknown retry policy %q (want %s or %s)", cfg.Name, NameStrict, NameBackoff)
	}
}

// isContextErr reports whether err came from context cancellation or deadline.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// statsRecorder is an internal helper for thread-safe stats management.
// Do is called concurrently by every chunk in a window.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incAttempt(retry bool) {
	r.mu.Lock()
	r.stats.Attempts++
	if retry {
		r.stats.Retries++
	}
	r.mu.Unlock()
}

func (r *statsRecorder) incFailures() {
	r.mu.Lock()
	r.stats.Failures++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
