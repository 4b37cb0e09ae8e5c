// Package remote defines the management-canister snapshot RPCs the transfer
// engine drives, and the classification of their failures.
package remote

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/pithecene-io/canisnap/types"
)

// Service is the remote snapshot API.
//
// Implementations must be safe for concurrent use: a window issues up to
// its concurrency limit of data calls at once.
type Service interface {
	// ReadSnapshotMetadata returns the metadata of an existing snapshot.
	ReadSnapshotMetadata(ctx context.Context, canisterID string, id types.SnapshotID) (*types.RemoteSnapshotMetadata, error)

	// ReadSnapshotData returns the bytes addressed by kind.
	ReadSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind DataKind) ([]byte, error)

	// WriteSnapshotMetadata creates a snapshot from metadata, or overwrites
	// the snapshot named by replace when replace is non-empty. It returns the
	// id every subsequent data write must reference.
	WriteSnapshotMetadata(ctx context.Context, canisterID string, md *types.RemoteSnapshotMetadata, replace types.SnapshotID) (types.SnapshotID, error)

	// WriteSnapshotData attaches data to a snapshot created by
	// WriteSnapshotMetadata.
	WriteSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind DataKind, data []byte) error

	// Close releases transport resources.
	Close() error
}

// DataKind addresses snapshot data. It is either LinearRange or
// ChunkStoreEntry.
type DataKind interface {
	fmt.Stringer
	dataKind()
}

// LinearRange addresses Size bytes at Offset of a linear artifact.
type LinearRange struct {
	Artifact types.Artifact
	Offset   uint64
	Size     uint64
}

func (LinearRange) dataKind() {}

func (k LinearRange) String() string {
	return fmt.Sprintf("%s[%d:%d]", k.Artifact, k.Offset, k.Offset+k.Size)
}

// ChunkStoreEntry addresses one chunk store blob by content hash.
type ChunkStoreEntry struct {
	Hash []byte
}

func (ChunkStoreEntry) dataKind() {}

func (k ChunkStoreEntry) String() string {
	return "chunk:" + hex.EncodeToString(k.Hash)
}

// KindFor converts a chunk descriptor into the remote data address.
func KindFor(d types.ChunkDescriptor) DataKind {
	if d.Kind == types.DescriptorChunkStoreEntry {
		return ChunkStoreEntry{Hash: d.ContentHash}
	}
	return LinearRange{Artifact: d.Artifact, Offset: d.Offset, Size: d.Size}
}
