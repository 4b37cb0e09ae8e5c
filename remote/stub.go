package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/canisnap/types"
)

// StubService is an in-memory Service for tests.
//
// It keeps snapshots in maps, counts every call, and lets tests inject
// failures per call through the Fail hook.
type StubService struct {
	mu        sync.Mutex
	snapshots map[string]*stubSnapshot
	nextID    uint64

	// Fail, when set, is consulted before every call. A non-nil return is
	// returned as the call error. kind is nil for metadata calls.
	Fail func(op string, kind DataKind) error

	MetadataReads  int
	DataReads      int
	MetadataWrites int
	DataWrites     int
	Closed         bool
}

type stubSnapshot struct {
	md     *types.RemoteSnapshotMetadata
	linear map[types.Artifact][]byte
	chunks map[string][]byte
}

// NewStubService creates an empty stub service.
func NewStubService() *StubService {
	return &StubService{snapshots: make(map[string]*stubSnapshot)}
}

func stubKey(canisterID string, id types.SnapshotID) string {
	return canisterID + "/" + id.String()
}

// Seed stores a complete snapshot. The metadata sizes and chunk store hash
// list are derived from linear and chunks.
func (s *StubService) Seed(canisterID string, id types.SnapshotID, linear map[types.Artifact][]byte, chunks [][]byte) *types.RemoteSnapshotMetadata {
	snap := &stubSnapshot{
		md: &types.RemoteSnapshotMetadata{
			Source:           types.SourceTakenFromCanister,
			TakenAtTimestamp: 1_700_000_000_000_000_000,
			CanisterVersion:  7,
			CertifiedData:    []byte{0x01, 0x02},
			Globals:          []types.Global{{Type: types.GlobalI32, Value: "42"}},
		},
		linear: make(map[types.Artifact][]byte),
		chunks: make(map[string][]byte),
	}
	for a, data := range linear {
		snap.linear[a] = append([]byte(nil), data...)
		switch a {
		case types.ArtifactWasmModule:
			snap.md.WasmModuleSize = uint64(len(data))
		case types.ArtifactWasmMemory:
			snap.md.WasmMemorySize = uint64(len(data))
		case types.ArtifactStableMemory:
			snap.md.StableMemorySize = uint64(len(data))
		}
	}
	for _, c := range chunks {
		sum := sha256.Sum256(c)
		snap.md.WasmChunkStore = append(snap.md.WasmChunkStore, sum[:])
		snap.chunks[hex.EncodeToString(sum[:])] = append([]byte(nil), c...)
	}

	s.mu.Lock()
	s.snapshots[stubKey(canisterID, id)] = snap
	s.mu.Unlock()
	return snap.md.Clone()
}

// Linear returns a copy of the stored bytes of a linear artifact.
func (s *StubService) Linear(canisterID string, id types.SnapshotID, a types.Artifact) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	if !ok {
		return nil
	}
	return append([]byte(nil), snap.linear[a]...)
}

// Chunk returns a copy of a stored chunk store entry.
func (s *StubService) Chunk(canisterID string, id types.SnapshotID, hash []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	if !ok {
		return nil, false
	}
	data, ok := snap.chunks[hex.EncodeToString(hash)]
	return append([]byte(nil), data...), ok
}

// Metadata returns a copy of the stored metadata.
func (s *StubService) Metadata(canisterID string, id types.SnapshotID) *types.RemoteSnapshotMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	if !ok {
		return nil
	}
	return snap.md.Clone()
}

// TotalCalls returns the number of RPCs issued so far.
func (s *StubService) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.MetadataReads + s.DataReads + s.MetadataWrites + s.DataWrites
}

func (s *StubService) fail(op string, kind DataKind) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, kind)
}

// ReadSnapshotMetadata implements Service.
func (s *StubService) ReadSnapshotMetadata(_ context.Context, canisterID string, id types.SnapshotID) (*types.RemoteSnapshotMetadata, error) {
	s.mu.Lock()
	s.MetadataReads++
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	s.mu.Unlock()

	if err := s.fail(OpReadMetadata, nil); err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewCallError(ErrNotFound, OpReadMetadata, id.String(), errors.New("no such snapshot"))
	}
	return snap.md.Clone(), nil
}

// ReadSnapshotData implements Service.
func (s *StubService) ReadSnapshotData(_ context.Context, canisterID string, id types.SnapshotID, kind DataKind) ([]byte, error) {
	s.mu.Lock()
	s.DataReads++
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	s.mu.Unlock()

	if err := s.fail(OpReadData, kind); err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewCallError(ErrNotFound, OpReadData, id.String(), errors.New("no such snapshot"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch k := kind.(type) {
	case LinearRange:
		buf := snap.linear[k.Artifact]
		end := k.Offset + k.Size
		if end > uint64(len(buf)) {
			return nil, NewCallError(ErrInvalidArgument, OpReadData, k.String(),
				fmt.Errorf("range end %d exceeds size %d", end, len(buf)))
		}
		return append([]byte(nil), buf[k.Offset:end]...), nil
	case ChunkStoreEntry:
		data, ok := snap.chunks[hex.EncodeToString(k.Hash)]
		if !ok {
			return nil, NewCallError(ErrNotFound, OpReadData, k.String(), errors.New("no such chunk"))
		}
		return append([]byte(nil), data...), nil
	default:
		return nil, NewCallError(ErrInvalidArgument, OpReadData, "", fmt.Errorf("unknown data kind %T", kind))
	}
}

// WriteSnapshotMetadata implements Service. Without replace it mints a new
// 8-byte id; with replace the snapshot must exist and its data is cleared.
func (s *StubService) WriteSnapshotMetadata(_ context.Context, canisterID string, md *types.RemoteSnapshotMetadata, replace types.SnapshotID) (types.SnapshotID, error) {
	s.mu.Lock()
	s.MetadataWrites++
	s.mu.Unlock()

	if err := s.fail(OpWriteMetadata, nil); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := replace
	if id.IsZero() {
		s.nextID++
		id = make(types.SnapshotID, 8)
		binary.BigEndian.PutUint64(id, s.nextID)
	} else if _, ok := s.snapshots[stubKey(canisterID, id)]; !ok {
		return nil, NewCallError(ErrNotFound, OpWriteMetadata, id.String(), errors.New("replace target does not exist"))
	}

	stored := md.Clone()
	stored.Source = types.SourceMetadataUpload
	s.snapshots[stubKey(canisterID, id)] = &stubSnapshot{
		md:     stored,
		linear: make(map[types.Artifact][]byte),
		chunks: make(map[string][]byte),
	}
	return append(types.SnapshotID(nil), id...), nil
}

// WriteSnapshotData implements Service.
func (s *StubService) WriteSnapshotData(_ context.Context, canisterID string, id types.SnapshotID, kind DataKind, data []byte) error {
	s.mu.Lock()
	s.DataWrites++
	s.mu.Unlock()

	if err := s.fail(OpWriteData, kind); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[stubKey(canisterID, id)]
	if !ok {
		return NewCallError(ErrNotFound, OpWriteData, id.String(), errors.New("no such snapshot"))
	}

	switch k := kind.(type) {
	case LinearRange:
		if uint64(len(data)) != k.Size {
			return NewCallError(ErrInvalidArgument, OpWriteData, k.String(),
				fmt.Errorf("got %d bytes for a %d byte range", len(data), k.Size))
		}
		buf := snap.linear[k.Artifact]
		if end := k.Offset + k.Size; end > uint64(len(buf)) {
			grown := make([]byte, end)
			copy(grown, buf)
			buf = grown
		}
		copy(buf[k.Offset:], data)
		snap.linear[k.Artifact] = buf
		return nil
	case ChunkStoreEntry:
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], k.Hash) {
			return NewCallError(ErrInvalidArgument, OpWriteData, k.String(), errors.New("content hash mismatch"))
		}
		snap.chunks[hex.EncodeToString(k.Hash)] = append([]byte(nil), data...)
		return nil
	default:
		return NewCallError(ErrInvalidArgument, OpWriteData, "", fmt.Errorf("unknown data kind %T", kind))
	}
}

// Close implements Service.
func (s *StubService) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
	return nil
}

// Verify StubService implements Service.
var _ Service = (*StubService)(nil)
