package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for remote failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the snapshot or chunk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the caller may not touch the canister.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument indicates a request the remote rejected as malformed
	// (range out of bounds, content hash mismatch).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")

	// ErrAuth indicates authentication failure (no credentials, expired token).
	ErrAuth = errors.New("authentication failed")

	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")

	// ErrUnavailable is the fallback for unclassified remote failures.
	ErrUnavailable = errors.New("remote unavailable")
)

// CallError wraps an underlying error with remote classification.
// It preserves the original error in the chain for inspection via errors.As.
type CallError struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Op is the RPC that failed (e.g., "read_snapshot_data").
	Op string
	// Target describes the addressed object, if any.
	Target string
	// Err is the underlying error.
	Err error
}

func (e *CallError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Target, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *CallError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// RPC names used as CallError.Op.
const (
	OpReadMetadata  = "read_snapshot_metadata"
	OpReadData      = "read_snapshot_data"
	OpWriteMetadata = "write_snapshot_metadata"
	OpWriteData     = "write_snapshot_data"
)

// NewCallError creates a classified remote error with an explicit kind.
func NewCallError(kind error, op, target string, err error) *CallError {
	return &CallError{Kind: kind, Op: op, Target: target, Err: err}
}

// Wrap classifies err and wraps it as a CallError.
// Returns nil if err is nil. Context cancellation and errors that are
// already classified pass through unchanged.
func Wrap(err error, op, target string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return err
	}
	return NewCallError(classifyError(err), op, target, err)
}

// KindName returns the classification label of err for metrics, or
// "unclassified" when err is not a CallError.
func KindName(err error) string {
	var callErr *CallError
	if errors.As(err, &callErr) && callErr.Kind != nil {
		return callErr.Kind.Error()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unclassified"
}

// Retryable reports whether a failed call may succeed if issued again.
// Missing objects, rejected requests and credential failures are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrAuth):
		return false
	default:
		var callErr *CallError
		return errors.As(err, &callErr)
	}
}

// classifyError determines the appropriate sentinel error for the given error.
// Classification is based on error type and message patterns.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"):
		return ErrNotFound

	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout

	case containsAny(msg, "slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"):
		return ErrThrottled

	case containsAny(msg, "nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"):
		return ErrAuth

	case containsAny(msg, "permission denied", "eacces", "accessdenied", "access denied", "forbidden", "403"):
		return ErrPermissionDenied

	case containsAny(msg, "connection refused", "connection reset", "no route to host",
		"network unreachable", "dns", "dial tcp", "broken pipe"):
		return ErrNetwork

	default:
		return ErrUnavailable
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
