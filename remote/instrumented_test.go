package remote

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/types"
)

func TestInstrumentedService_RecordsCalls(t *testing.T) {
	stub := NewStubService()
	id := types.SnapshotID{0x01}
	stub.Seed("aaaaa-aa", id, map[types.Artifact][]byte{
		types.ArtifactWasmMemory: bytes.Repeat([]byte{0x07}, 100),
	}, [][]byte{[]byte("chunk")})

	collector := metrics.NewCollector("download", "memory", "strict", "aaaaa-aa", id.String())
	svc := NewInstrumentedService(stub, collector)
	ctx := t.Context()

	if _, err := svc.ReadSnapshotMetadata(ctx, "aaaaa-aa", id); err != nil {
		t.Fatalf("ReadSnapshotMetadata failed: %v", err)
	}
	data, err := svc.ReadSnapshotData(ctx, "aaaaa-aa", id, LinearRange{Artifact: types.ArtifactWasmMemory, Offset: 0, Size: 60})
	if err != nil {
		t.Fatalf("ReadSnapshotData failed: %v", err)
	}
	if len(data) != 60 {
		t.Errorf("read %d bytes, want 60", len(data))
	}

	// Out of range read fails and is counted under its kind.
	_, err = svc.ReadSnapshotData(ctx, "aaaaa-aa", id, LinearRange{Artifact: types.ArtifactWasmMemory, Offset: 90, Size: 20})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	s := collector.Snapshot()
	if s.RemoteCallSuccess != 2 {
		t.Errorf("RemoteCallSuccess = %d, want 2", s.RemoteCallSuccess)
	}
	if s.RemoteCallFailure != 1 || s.FailuresByKind[ErrInvalidArgument.Error()] != 1 {
		t.Errorf("failures = %d %v", s.RemoteCallFailure, s.FailuresByKind)
	}
	if s.ChunksRead != 1 || s.BytesRead != 60 {
		t.Errorf("ChunksRead/BytesRead = %d/%d, want 1/60", s.ChunksRead, s.BytesRead)
	}
}

func TestInstrumentedService_WriteSetsSnapshotID(t *testing.T) {
	stub := NewStubService()
	collector := metrics.NewCollector("upload", "memory", "strict", "aaaaa-aa", "")
	svc := NewInstrumentedService(stub, collector)
	ctx := t.Context()

	id, err := svc.WriteSnapshotMetadata(ctx, "aaaaa-aa", &types.RemoteSnapshotMetadata{WasmMemorySize: 3}, nil)
	if err != nil {
		t.Fatalf("WriteSnapshotMetadata failed: %v", err)
	}
	if err := svc.WriteSnapshotData(ctx, "aaaaa-aa", id, LinearRange{Artifact: types.ArtifactWasmMemory, Size: 3}, []byte("abc")); err != nil {
		t.Fatalf("WriteSnapshotData failed: %v", err)
	}

	s := collector.Snapshot()
	if s.SnapshotID != id.String() {
		t.Errorf("SnapshotID dimension = %q, want %q", s.SnapshotID, id.String())
	}
	if s.ChunksWritten != 1 || s.BytesWritten != 3 {
		t.Errorf("ChunksWritten/BytesWritten = %d/%d, want 1/3", s.ChunksWritten, s.BytesWritten)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !stub.Closed {
		t.Error("Close was not delegated")
	}
}

func TestStubService_WriteChunkVerifiesHash(t *testing.T) {
	stub := NewStubService()
	ctx := t.Context()
	id, err := stub.WriteSnapshotMetadata(ctx, "c", &types.RemoteSnapshotMetadata{}, nil)
	if err != nil {
		t.Fatalf("WriteSnapshotMetadata failed: %v", err)
	}

	sum := types.SumBytes([]byte("right"))
	err = stub.WriteSnapshotData(ctx, "c", id, ChunkStoreEntry{Hash: sum[:]}, []byte("wrong"))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := stub.WriteSnapshotData(ctx, "c", id, ChunkStoreEntry{Hash: sum[:]}, []byte("right")); err != nil {
		t.Errorf("valid chunk write failed: %v", err)
	}
}

func TestStubService_ReplaceMissing(t *testing.T) {
	stub := NewStubService()
	_, err := stub.WriteSnapshotMetadata(t.Context(), "c", &types.RemoteSnapshotMetadata{}, types.SnapshotID{0x09})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
