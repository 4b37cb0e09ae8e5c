// Package storesvc implements remote.Service on top of a Lode store.
//
// Snapshots are laid out as plain objects:
//
//	canisters/<canister>/snapshots/<0xid>/metadata.msgpack
//	canisters/<canister>/snapshots/<0xid>/linear/<artifact>/<offset>-<size>
//	canisters/<canister>/snapshots/<0xid>/chunks/<hex hash>
//
// Linear artifacts are stored as the parts they were written in. Reads
// assemble the requested range from every overlapping part, so a snapshot
// uploaded with one chunk size can be downloaded with another.
package storesvc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/canisnap/iox"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/types"
)

const metadataObject = "metadata.msgpack"

// Service is a store-backed remote.Service.
type Service struct {
	store lode.Store
}

// New wraps an existing store.
func New(store lode.Store) *Service {
	return &Service{store: store}
}

// NewFromFactory creates a store from factory and wraps it.
func NewFromFactory(factory lode.StoreFactory) (*Service, error) {
	store, err := factory()
	if err != nil {
		return nil, remote.Wrap(err, "open_store", "")
	}
	return New(store), nil
}

func snapshotPrefix(canisterID string, id types.SnapshotID) string {
	return path.Join("canisters", canisterID, "snapshots", id.String())
}

func metadataPath(canisterID string, id types.SnapshotID) string {
	return path.Join(snapshotPrefix(canisterID, id), metadataObject)
}

func linearPrefix(canisterID string, id types.SnapshotID, a types.Artifact) string {
	return path.Join(snapshotPrefix(canisterID, id), "linear", string(a)) + "/"
}

func linearPartName(offset, size uint64) string {
	return fmt.Sprintf("%020d-%d", offset, size)
}

func chunkPath(canisterID string, id types.SnapshotID, hash []byte) string {
	return path.Join(snapshotPrefix(canisterID, id), "chunks", hex.EncodeToString(hash))
}

// part is one stored linear object.
type part struct {
	path   string
	offset uint64
	size   uint64
}

func parsePart(prefix, p string) (part, bool) {
	name := path.Base(p)
	offStr, sizeStr, ok := strings.Cut(name, "-")
	if !ok {
		return part{}, false
	}
	offset, err := strconv.ParseUint(offStr, 10, 64)
	if err != nil {
		return part{}, false
	}
	size, err := strconv.ParseUint(sizeStr, 10, 64)
	if err != nil {
		return part{}, false
	}
	return part{path: prefix + name, offset: offset, size: size}, true
}

func (s *Service) requireSnapshot(ctx context.Context, op, canisterID string, id types.SnapshotID) error {
	ok, err := s.store.Exists(ctx, metadataPath(canisterID, id))
	if err != nil {
		return remote.Wrap(err, op, id.String())
	}
	if !ok {
		return remote.NewCallError(remote.ErrNotFound, op, id.String(),
			fmt.Errorf("canister %s has no snapshot %s", canisterID, id))
	}
	return nil
}

// put writes an object, replacing any previous version.
func (s *Service) put(ctx context.Context, p string, data []byte) error {
	exists, err := s.store.Exists(ctx, p)
	if err != nil {
		return err
	}
	if exists {
		if err := s.store.Delete(ctx, p); err != nil {
			return err
		}
	}
	return s.store.Put(ctx, p, bytes.NewReader(data))
}

// ReadSnapshotMetadata implements remote.Service.
func (s *Service) ReadSnapshotMetadata(ctx context.Context, canisterID string, id types.SnapshotID) (*types.RemoteSnapshotMetadata, error) {
	if err := s.requireSnapshot(ctx, remote.OpReadMetadata, canisterID, id); err != nil {
		return nil, err
	}

	rc, err := s.store.Get(ctx, metadataPath(canisterID, id))
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadMetadata, id.String())
	}
	defer iox.DiscardClose(rc)

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadMetadata, id.String())
	}
	var md types.RemoteSnapshotMetadata
	if err := msgpack.Unmarshal(raw, &md); err != nil {
		return nil, remote.NewCallError(remote.ErrUnavailable, remote.OpReadMetadata, id.String(),
			fmt.Errorf("corrupt metadata object: %w", err))
	}
	return &md, nil
}

// ReadSnapshotData implements remote.Service.
func (s *Service) ReadSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind remote.DataKind) ([]byte, error) {
	switch k := kind.(type) {
	case remote.LinearRange:
		return s.readLinear(ctx, canisterID, id, k)
	case remote.ChunkStoreEntry:
		return s.readChunk(ctx, canisterID, id, k)
	default:
		return nil, remote.NewCallError(remote.ErrInvalidArgument, remote.OpReadData, "",
			fmt.Errorf("unknown data kind %T", kind))
	}
}

func (s *Service) readLinear(ctx context.Context, canisterID string, id types.SnapshotID, k remote.LinearRange) ([]byte, error) {
	if err := s.requireSnapshot(ctx, remote.OpReadData, canisterID, id); err != nil {
		return nil, err
	}

	prefix := linearPrefix(canisterID, id, k.Artifact)
	paths, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadData, k.String())
	}

	var parts []part
	for _, p := range paths {
		if pt, ok := parsePart(prefix, p); ok {
			parts = append(parts, pt)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].offset < parts[j].offset })

	out := make([]byte, 0, k.Size)
	cursor, end := k.Offset, k.Offset+k.Size
	for _, pt := range parts {
		if cursor >= end {
			break
		}
		partEnd := pt.offset + pt.size
		if partEnd <= cursor {
			continue
		}
		if pt.offset > cursor {
			// Gap; reported below.
			break
		}
		n := min(partEnd, end) - cursor
		data, err := s.store.ReadRange(ctx, pt.path, int64(cursor-pt.offset), int64(n))
		if err != nil {
			return nil, remote.Wrap(err, remote.OpReadData, k.String())
		}
		if uint64(len(data)) != n {
			return nil, remote.NewCallError(remote.ErrUnavailable, remote.OpReadData, k.String(),
				fmt.Errorf("part %s returned %d of %d bytes", path.Base(pt.path), len(data), n))
		}
		out = append(out, data...)
		cursor += n
	}

	if cursor < end {
		return nil, remote.NewCallError(remote.ErrInvalidArgument, remote.OpReadData, k.String(),
			fmt.Errorf("no stored data at offset %d", cursor))
	}
	return out, nil
}

func (s *Service) readChunk(ctx context.Context, canisterID string, id types.SnapshotID, k remote.ChunkStoreEntry) ([]byte, error) {
	p := chunkPath(canisterID, id, k.Hash)
	ok, err := s.store.Exists(ctx, p)
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadData, k.String())
	}
	if !ok {
		return nil, remote.NewCallError(remote.ErrNotFound, remote.OpReadData, k.String(),
			errors.New("chunk store entry does not exist"))
	}

	rc, err := s.store.Get(ctx, p)
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadData, k.String())
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, remote.Wrap(err, remote.OpReadData, k.String())
	}
	return data, nil
}

// WriteSnapshotMetadata implements remote.Service. Without replace a new
// snapshot id is minted from a random UUID. With replace the snapshot must
// already exist; its previous data is removed before the new metadata is
// stored.
func (s *Service) WriteSnapshotMetadata(ctx context.Context, canisterID string, md *types.RemoteSnapshotMetadata, replace types.SnapshotID) (types.SnapshotID, error) {
	if md == nil {
		return nil, remote.NewCallError(remote.ErrInvalidArgument, remote.OpWriteMetadata, "", errors.New("metadata is nil"))
	}

	id := replace
	if id.IsZero() {
		u := uuid.New()
		id = types.SnapshotID(u[:])
	} else {
		if err := s.requireSnapshot(ctx, remote.OpWriteMetadata, canisterID, id); err != nil {
			return nil, err
		}
		if err := s.clear(ctx, canisterID, id); err != nil {
			return nil, remote.Wrap(err, remote.OpWriteMetadata, id.String())
		}
	}

	stored := md.Clone()
	stored.Source = types.SourceMetadataUpload
	raw, err := msgpack.Marshal(stored)
	if err != nil {
		return nil, remote.NewCallError(remote.ErrInvalidArgument, remote.OpWriteMetadata, id.String(), err)
	}
	if err := s.put(ctx, metadataPath(canisterID, id), raw); err != nil {
		return nil, remote.Wrap(err, remote.OpWriteMetadata, id.String())
	}
	return id, nil
}

// clear removes every object of a snapshot.
func (s *Service) clear(ctx context.Context, canisterID string, id types.SnapshotID) error {
	paths, err := s.store.List(ctx, snapshotPrefix(canisterID, id)+"/")
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshotData implements remote.Service. Chunk store entries must
// hash to their address.
func (s *Service) WriteSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind remote.DataKind, data []byte) error {
	if err := s.requireSnapshot(ctx, remote.OpWriteData, canisterID, id); err != nil {
		return err
	}

	switch k := kind.(type) {
	case remote.LinearRange:
		if uint64(len(data)) != k.Size {
			return remote.NewCallError(remote.ErrInvalidArgument, remote.OpWriteData, k.String(),
				fmt.Errorf("got %d bytes for a %d byte range", len(data), k.Size))
		}
		p := linearPrefix(canisterID, id, k.Artifact) + linearPartName(k.Offset, k.Size)
		return remote.Wrap(s.put(ctx, p, data), remote.OpWriteData, k.String())

	case remote.ChunkStoreEntry:
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], k.Hash) {
			return remote.NewCallError(remote.ErrInvalidArgument, remote.OpWriteData, k.String(),
				fmt.Errorf("content hash mismatch: data hashes to %x", sum))
		}
		p := chunkPath(canisterID, id, k.Hash)
		exists, err := s.store.Exists(ctx, p)
		if err != nil {
			return remote.Wrap(err, remote.OpWriteData, k.String())
		}
		if exists {
			// Content addressed: same key, same bytes.
			return nil
		}
		return remote.Wrap(s.store.Put(ctx, p, bytes.NewReader(data)), remote.OpWriteData, k.String())

	default:
		return remote.NewCallError(remote.ErrInvalidArgument, remote.OpWriteData, "",
			fmt.Errorf("unknown data kind %T", kind))
	}
}

// Close implements remote.Service. Lode stores hold no connections that
// need releasing.
func (s *Service) Close() error {
	return nil
}

// Verify Service implements remote.Service.
var _ remote.Service = (*Service)(nil)
