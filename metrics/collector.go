// Package metrics provides per-transfer metrics collection.
//
// The Collector accumulates counters during a single download, upload or
// verify invocation. It is a leaf package with no internal dependencies.
// Retry counters are absorbed from policy.Stats at transfer completion
// rather than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all transfer metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Transfer lifecycle
	TransfersStarted   int64
	TransfersCompleted int64
	TransfersFailed    int64

	// Artifacts
	ArtifactsTransferred int64
	ArtifactsSkipped     int64

	// Scheduler
	WindowsCompleted int64

	// Chunks and bytes moved through the remote service
	ChunksRead    int64
	ChunksWritten int64
	BytesRead     int64
	BytesWritten  int64

	// Remote calls
	RemoteCallSuccess int64
	RemoteCallFailure int64
	FailuresByKind    map[string]int64

	// Retry (absorbed from policy.Stats at transfer completion)
	Attempts int64
	Retries  int64

	// Dimensions (informational)
	Operation   string
	Backend     string
	RetryPolicy string
	CanisterID  string
	SnapshotID  string
}

// Collector accumulates metrics during a single transfer.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	transfersStarted   int64
	transfersCompleted int64
	transfersFailed    int64

	artifactsTransferred int64
	artifactsSkipped     int64

	windowsCompleted int64

	chunksRead    int64
	chunksWritten int64
	bytesRead     int64
	bytesWritten  int64

	remoteCallSuccess int64
	remoteCallFailure int64
	failuresByKind    map[string]int64

	attempts int64
	retries  int64

	operation   string
	backend     string
	retryPolicy string
	canisterID  string
	snapshotID  string
}

// NewCollector creates a Collector with dimension labels.
// snapshotID may be empty and set later via SetSnapshotID, since uploads
// learn the target id from the remote.
func NewCollector(operation, backend, retryPolicy, canisterID, snapshotID string) *Collector {
	return &Collector{
		failuresByKind: make(map[string]int64),
		operation:      operation,
		backend:        backend,
		retryPolicy:    retryPolicy,
		canisterID:     canisterID,
		snapshotID:     snapshotID,
	}
}

// SetSnapshotID records the snapshot id dimension once it is known.
func (c *Collector) SetSnapshotID(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.snapshotID = id
	c.mu.Unlock()
}

// add increments *field by n under the lock.
func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Transfer lifecycle ---

// IncTransferStarted records a transfer start.
func (c *Collector) IncTransferStarted() {
	if c == nil {
		return
	}
	c.add(&c.transfersStarted, 1)
}

// IncTransferCompleted records a successful transfer.
func (c *Collector) IncTransferCompleted() {
	if c == nil {
		return
	}
	c.add(&c.transfersCompleted, 1)
}

// IncTransferFailed records a failed transfer.
func (c *Collector) IncTransferFailed() {
	if c == nil {
		return
	}
	c.add(&c.transfersFailed, 1)
}

// --- Artifacts ---

// IncArtifactTransferred records one artifact moved end to end.
func (c *Collector) IncArtifactTransferred() {
	if c == nil {
		return
	}
	c.add(&c.artifactsTransferred, 1)
}

// IncArtifactSkipped records an absent artifact (size 0 or empty chunk store).
func (c *Collector) IncArtifactSkipped() {
	if c == nil {
		return
	}
	c.add(&c.artifactsSkipped, 1)
}

// IncWindowCompleted records a window whose every chunk succeeded.
func (c *Collector) IncWindowCompleted() {
	if c == nil {
		return
	}
	c.add(&c.windowsCompleted, 1)
}

// --- Remote calls ---
// Remote counters are per call. A metadata call counts as one call and
// moves no chunk bytes.

// RecordChunkRead records a successful data read of n bytes.
func (c *Collector) RecordChunkRead(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksRead++
	c.bytesRead += int64(n)
	c.mu.Unlock()
}

// RecordChunkWritten records a successful data write of n bytes.
func (c *Collector) RecordChunkWritten(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksWritten++
	c.bytesWritten += int64(n)
	c.mu.Unlock()
}

// IncRemoteCallSuccess records a successful remote call.
func (c *Collector) IncRemoteCallSuccess() {
	if c == nil {
		return
	}
	c.add(&c.remoteCallSuccess, 1)
}

// IncRemoteCallFailure records a failed remote call under its
// classification kind (e.g. "timeout", "not found").
func (c *Collector) IncRemoteCallFailure(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.remoteCallFailure++
	c.failuresByKind[kind]++
	c.mu.Unlock()
}

// AbsorbRetryStats copies retry counters from policy.Stats into the collector.
// Called once after transfer completion with the final policy stats snapshot.
func (c *Collector) AbsorbRetryStats(attempts, retries int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.attempts = attempts
	c.retries = retries
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.failuresByKind))
	for k, v := range c.failuresByKind {
		byKind[k] = v
	}

	return Snapshot{
		TransfersStarted:   c.transfersStarted,
		TransfersCompleted: c.transfersCompleted,
		TransfersFailed:    c.transfersFailed,

		ArtifactsTransferred: c.artifactsTransferred,
		ArtifactsSkipped:     c.artifactsSkipped,

		WindowsCompleted: c.windowsCompleted,

		ChunksRead:    c.chunksRead,
		ChunksWritten: c.chunksWritten,
		BytesRead:     c.bytesRead,
		BytesWritten:  c.bytesWritten,

		RemoteCallSuccess: c.remoteCallSuccess,
		RemoteCallFailure: c.remoteCallFailure,
		FailuresByKind:    byKind,

		Attempts: c.attempts,
		Retries:  c.retries,

		Operation:   c.operation,
		Backend:     c.backend,
		RetryPolicy: c.retryPolicy,
		CanisterID:  c.canisterID,
		SnapshotID:  c.snapshotID,
	}
}
