// Package adapter defines the notification boundary for finished transfers.
//
// Adapters publish a transfer completion event to a downstream system once
// a download or upload ends, successfully or not. Publishing is best
// effort: the CLI logs a failed publish and keeps the transfer's exit code.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/canisnap/policy"
)

// Event types.
const (
	EventSnapshotDownloaded = "snapshot_downloaded"
	EventSnapshotUploaded   = "snapshot_uploaded"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// TransferCompletedEvent is the payload published when a transfer finishes.
type TransferCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // snapshot_downloaded or snapshot_uploaded
	TransferID      string `json:"transfer_id"`
	CanisterID      string `json:"canister_id"`
	SnapshotID      string `json:"snapshot_id,omitempty"` // 0x hex; empty if an upload failed before the metadata write
	Outcome         string `json:"outcome"`
	ErrorKind       string `json:"error_kind,omitempty"`
	Folder          string `json:"folder"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	Artifacts       int    `json:"artifacts"`
	Bytes           uint64 `json:"bytes"`
	DurationMs      int64  `json:"duration_ms"`
}

// Adapter publishes transfer completion events to a downstream system.
type Adapter interface {
	// Publish sends a transfer completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TransferCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultRetryInterval is the first delay between publish attempts.
const DefaultRetryInterval = 500 * time.Millisecond

// RetryPolicy returns the retry strategy for retries publish retries after
// the first attempt. retryable decides which failures are worth another
// attempt; nil retries everything except context errors.
func RetryPolicy(retries int, interval time.Duration, retryable func(error) bool) policy.Retry {
	if retries <= 0 {
		return policy.NewStrict()
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	maxRetries := uint64(retries)
	return policy.NewBackoff(policy.Config{
		Name:            policy.NameBackoff,
		MaxRetries:      &maxRetries,
		InitialInterval: interval,
		MaxInterval:     8 * interval,
		Retryable:       retryable,
	})
}
