// Package reader provides the read-side data access layer for the canisnap
// CLI.
//
// It turns a local snapshot folder into the view payloads rendered by the
// inspect and verify commands, and a metrics snapshot into the summary
// printed after a transfer. The same payloads back json, yaml, table and
// TUI output.
package reader

import "time"

// SnapshotView is the inspect payload for one snapshot folder.
type SnapshotView struct {
	SnapshotID        string         `json:"snapshot_id" yaml:"snapshot_id"`
	Folder            string         `json:"folder" yaml:"folder"`
	Source            string         `json:"source" yaml:"source"`
	TakenAt           *time.Time     `json:"taken_at" yaml:"taken_at"`
	CanisterVersion   uint64         `json:"canister_version" yaml:"canister_version"`
	CertifiedData     string         `json:"certified_data" yaml:"certified_data"`
	Globals           int            `json:"globals" yaml:"globals"`
	GlobalTimer       *TimerView     `json:"global_timer" yaml:"global_timer"`
	LowMemoryHook     *string        `json:"on_low_wasm_memory_hook_status" yaml:"on_low_wasm_memory_hook_status"`
	ChunkStoreEntries int            `json:"chunk_store_entries" yaml:"chunk_store_entries"`
	TotalBytes        uint64         `json:"total_bytes" yaml:"total_bytes"`
	Artifacts         []ArtifactView `json:"artifacts" yaml:"artifacts"`
}

// TimerView is the global timer state.
type TimerView struct {
	Active bool   `json:"active" yaml:"active"`
	At     uint64 `json:"at" yaml:"at"`
}

// ArtifactView describes one artifact slot of a snapshot.
type ArtifactView struct {
	Artifact string `json:"artifact" yaml:"artifact"`
	Filename string `json:"filename" yaml:"filename"`
	Present  bool   `json:"present" yaml:"present"`
	Size     uint64 `json:"size" yaml:"size"`
	Hash     string `json:"hash" yaml:"hash"`
}

// Verify statuses.
const (
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// VerifyView is the verify payload for one snapshot folder.
type VerifyView struct {
	Folder     string `json:"folder" yaml:"folder"`
	SnapshotID string `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	Status     string `json:"status" yaml:"status"`
	ErrorKind  string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	Artifacts  int    `json:"artifacts" yaml:"artifacts"`
	TotalBytes uint64 `json:"total_bytes" yaml:"total_bytes"`
}

// TransferView summarizes a finished download or upload.
type TransferView struct {
	Operation  string `json:"operation" yaml:"operation"`
	TransferID string `json:"transfer_id" yaml:"transfer_id"`
	CanisterID string `json:"canister_id" yaml:"canister_id"`
	SnapshotID string `json:"snapshot_id" yaml:"snapshot_id"`
	Folder     string `json:"folder" yaml:"folder"`
	Artifacts  int    `json:"artifacts" yaml:"artifacts"`
	TotalBytes uint64 `json:"total_bytes" yaml:"total_bytes"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`

	Metrics *MetricsView `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// MetricsView is the metrics summary printed after a transfer.
type MetricsView struct {
	Operation            string           `json:"operation" yaml:"operation"`
	Backend              string           `json:"backend" yaml:"backend"`
	RetryPolicy          string           `json:"retry_policy" yaml:"retry_policy"`
	CanisterID           string           `json:"canister_id" yaml:"canister_id"`
	SnapshotID           string           `json:"snapshot_id" yaml:"snapshot_id"`
	TransfersStarted     int64            `json:"transfers_started" yaml:"transfers_started"`
	TransfersCompleted   int64            `json:"transfers_completed" yaml:"transfers_completed"`
	TransfersFailed      int64            `json:"transfers_failed" yaml:"transfers_failed"`
	ArtifactsTransferred int64            `json:"artifacts_transferred" yaml:"artifacts_transferred"`
	ArtifactsSkipped     int64            `json:"artifacts_skipped" yaml:"artifacts_skipped"`
	WindowsCompleted     int64            `json:"windows_completed" yaml:"windows_completed"`
	ChunksRead           int64            `json:"chunks_read" yaml:"chunks_read"`
	ChunksWritten        int64            `json:"chunks_written" yaml:"chunks_written"`
	BytesRead            int64            `json:"bytes_read" yaml:"bytes_read"`
	BytesWritten         int64            `json:"bytes_written" yaml:"bytes_written"`
	RemoteCallSuccess    int64            `json:"remote_call_success" yaml:"remote_call_success"`
	RemoteCallFailure    int64            `json:"remote_call_failure" yaml:"remote_call_failure"`
	FailuresByKind       map[string]int64 `json:"failures_by_kind" yaml:"failures_by_kind"`
	Attempts             int64            `json:"attempts" yaml:"attempts"`
	Retries              int64            `json:"retries" yaml:"retries"`
}
