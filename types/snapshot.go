//nolint:revive // types is a common Go package naming convention
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SnapshotID identifies a canister snapshot. The bytes are opaque; the
// textual form is lowercase hex prefixed with "0x".
type SnapshotID []byte

// String renders the id as 0x-prefixed lowercase hex.
func (id SnapshotID) String() string {
	return "0x" + hex.EncodeToString(id)
}

// IsZero reports whether the id is empty.
func (id SnapshotID) IsZero() bool {
	return len(id) == 0
}

// Equal reports whether two ids hold the same bytes.
func (id SnapshotID) Equal(other SnapshotID) bool {
	return string(id) == string(other)
}

// ParseSnapshotID parses a hex snapshot id, with or without the 0x prefix.
func ParseSnapshotID(s string) (SnapshotID, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return nil, errors.New("snapshot id is empty")
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return SnapshotID(b), nil
}

// Artifact names one of the four data slots of a snapshot.
type Artifact string

// Artifact slots. The declaration order is the transfer order.
const (
	ArtifactWasmModule     Artifact = "wasmModule"
	ArtifactWasmMemory     Artifact = "wasmMemory"
	ArtifactStableMemory   Artifact = "stableMemory"
	ArtifactWasmChunkStore Artifact = "wasmChunkStore"
)

// Artifacts returns every artifact in transfer order:
// module, heap, stable memory, chunk store.
func Artifacts() []Artifact {
	return []Artifact{
		ArtifactWasmModule,
		ArtifactWasmMemory,
		ArtifactStableMemory,
		ArtifactWasmChunkStore,
	}
}

// Filename returns the on-disk file name of the artifact.
func (a Artifact) Filename() string {
	switch a {
	case ArtifactWasmModule:
		return "wasm-code.bin"
	case ArtifactWasmMemory:
		return "heap.bin"
	case ArtifactStableMemory:
		return "stable.bin"
	case ArtifactWasmChunkStore:
		return "chunks-store.bin"
	default:
		return ""
	}
}

// IsLinear reports whether the artifact is addressed by byte offset.
// The chunk store is addressed by content hash instead.
func (a Artifact) IsLinear() bool {
	switch a {
	case ArtifactWasmModule, ArtifactWasmMemory, ArtifactStableMemory:
		return true
	default:
		return false
	}
}

// Valid reports whether a is one of the four known artifacts.
func (a Artifact) Valid() bool {
	return a.Filename() != ""
}

// ParseArtifact parses an artifact name.
func ParseArtifact(s string) (Artifact, error) {
	a := Artifact(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown artifact %q", s)
	}
	return a, nil
}

// SnapshotFile describes one materialized artifact on disk.
// Size is the number of bytes in the file; Hash is the SHA-256 of
// those bytes in offset order.
type SnapshotFile struct {
	Filename string
	Size     uint64
	Hash     Digest
}

// ArtifactFiles holds the on-disk descriptor of each artifact.
// A nil entry means the artifact is absent.
type ArtifactFiles struct {
	WasmModule     *SnapshotFile
	WasmMemory     *SnapshotFile
	StableMemory   *SnapshotFile
	WasmChunkStore *SnapshotFile
}

// Get returns the descriptor for a, or nil when absent.
func (f *ArtifactFiles) Get(a Artifact) *SnapshotFile {
	switch a {
	case ArtifactWasmModule:
		return f.WasmModule
	case ArtifactWasmMemory:
		return f.WasmMemory
	case ArtifactStableMemory:
		return f.StableMemory
	case ArtifactWasmChunkStore:
		return f.WasmChunkStore
	default:
		return nil
	}
}

// Set stores the descriptor for a.
func (f *ArtifactFiles) Set(a Artifact, file *SnapshotFile) {
	switch a {
	case ArtifactWasmModule:
		f.WasmModule = file
	case ArtifactWasmMemory:
		f.WasmMemory = file
	case ArtifactStableMemory:
		f.StableMemory = file
	case ArtifactWasmChunkStore:
		f.WasmChunkStore = file
	}
}

// Present returns the artifacts that have a file, in transfer order.
func (f *ArtifactFiles) Present() []Artifact {
	var out []Artifact
	for _, a := range Artifacts() {
		if f.Get(a) != nil {
			out = append(out, a)
		}
	}
	return out
}

// TotalBytes sums the sizes of all present files.
func (f *ArtifactFiles) TotalBytes() uint64 {
	var total uint64
	for _, a := range Artifacts() {
		if file := f.Get(a); file != nil {
			total += file.Size
		}
	}
	return total
}

// SnapshotManifest is the content of metadata.json.
type SnapshotManifest struct {
	SnapshotID SnapshotID
	Metadata   RemoteSnapshotMetadata
	Data       ArtifactFiles
}
