//nolint:revive // types is a common Go package naming convention
package types

// DescriptorKind discriminates ChunkDescriptor variants.
type DescriptorKind int

const (
	// DescriptorLinearRange addresses a byte range of a linear artifact.
	DescriptorLinearRange DescriptorKind = iota
	// DescriptorChunkStoreEntry addresses one content-addressed chunk store blob.
	DescriptorChunkStoreEntry
)

// ChunkDescriptor is one unit of transfer.
//
// For DescriptorLinearRange, Artifact, Offset and Size are set.
// For DescriptorChunkStoreEntry, ContentHash and OrderID are set and the
// artifact is always ArtifactWasmChunkStore.
type ChunkDescriptor struct {
	Kind DescriptorKind

	Artifact Artifact
	Offset   uint64
	Size     uint64

	ContentHash []byte
	OrderID     int
}

// LinearRange builds a linear descriptor.
func LinearRange(a Artifact, offset, size uint64) ChunkDescriptor {
	return ChunkDescriptor{
		Kind:     DescriptorLinearRange,
		Artifact: a,
		Offset:   offset,
		Size:     size,
	}
}

// ChunkStoreEntry builds a chunk store descriptor.
func ChunkStoreEntry(hash []byte, orderID int) ChunkDescriptor {
	return ChunkDescriptor{
		Kind:        DescriptorChunkStoreEntry,
		Artifact:    ArtifactWasmChunkStore,
		ContentHash: hash,
		OrderID:     orderID,
	}
}

// Progress reports cumulative completion of one artifact transfer.
// Done and Total count descriptors; Bytes counts payload bytes moved so far.
type Progress struct {
	Artifact Artifact
	Done     int
	Total    int
	Bytes    uint64
}

// Operation names the direction of a transfer.
type Operation string

// Transfer operations.
const (
	OperationDownload Operation = "download"
	OperationUpload   Operation = "upload"
	OperationVerify   Operation = "verify"
)

// TransferMeta identifies one engine invocation for logs and notifications.
type TransferMeta struct {
	TransferID string
	Operation  Operation
	CanisterID string
	// SnapshotID is nil until known (uploads learn it from the remote).
	SnapshotID SnapshotID
}
