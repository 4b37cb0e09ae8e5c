package transfer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pithecene-io/canisnap/frame"
	"github.com/pithecene-io/canisnap/iox"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/types"
)

// Uploader pushes the artifacts of a local snapshot folder to a remote
// snapshot whose metadata has already been written.
//
// Uploader trusts its inputs: pre-flight verification of the files is the
// orchestrator's job and happens before any remote call.
type Uploader struct {
	cfg        Config
	canisterID string
	snapshotID types.SnapshotID
	folder     string
}

// NewUploader creates an uploader reading from folder.
func NewUploader(cfg Config, canisterID string, id types.SnapshotID, folder string) (*Uploader, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Uploader{cfg: cfg, canisterID: canisterID, snapshotID: id, folder: folder}, nil
}

func (u *Uploader) open(a types.Artifact) (*os.File, string, error) {
	path := filepath.Join(u.folder, a.Filename())
	f, err := os.Open(path)
	if err != nil {
		return nil, path, ioError(a, path, err)
	}
	return f, path, nil
}

// Linear uploads a linear artifact described by file. A nil file means the
// artifact is absent and nothing is sent.
func (u *Uploader) Linear(ctx context.Context, a types.Artifact, file *types.SnapshotFile) error {
	if file == nil {
		u.skip(a)
		return nil
	}

	plan, err := PlanLinear(a, file.Size, u.cfg.ChunkSize)
	if err != nil {
		return planError(a, err)
	}

	f, path, err := u.open(a)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)

	u.cfg.Logger.Info("artifact upload started", map[string]any{
		"artifact": string(a),
		"size":     file.Size,
		"chunks":   len(plan),
	})

	var sent uint64
	err = RunWindows(ctx, plan, u.cfg.window(a, u.cfg.LinearConcurrency, &sent),
		func(ctx context.Context, c types.ChunkDescriptor) (int, error) {
			buf := make([]byte, c.Size)
			n, err := f.ReadAt(buf, int64(c.Offset))
			if n < len(buf) {
				if err == io.EOF {
					err = nil
				}
				return 0, &Error{
					Kind:     KindShortRead,
					Artifact: a,
					Filename: a.Filename(),
					Path:     path,
					Expected: fmt.Sprintf("%d bytes at offset %d", c.Size, c.Offset),
					Actual:   fmt.Sprintf("%d bytes", n),
					Err:      err,
				}
			}
			if err := u.cfg.Service.WriteSnapshotData(ctx, u.canisterID, u.snapshotID, remote.KindFor(c), buf); err != nil {
				return 0, transportError(ctx, a, err)
			}
			return n, nil
		},
		func(_ types.ChunkDescriptor, n int) error {
			sent += uint64(n)
			return nil
		},
	)
	if err != nil {
		return err
	}

	u.done(a, sent)
	return nil
}

// ChunkStore uploads every frame of the chunk store file. The file must
// hold exactly one record per hash, in list order, and every record must
// carry and hash to its planned address.
func (u *Uploader) ChunkStore(ctx context.Context, file *types.SnapshotFile, hashes [][]byte) error {
	a := types.ArtifactWasmChunkStore
	if file == nil {
		if len(hashes) != 0 {
			return &Error{
				Kind:     KindManifest,
				Artifact: a,
				Expected: fmt.Sprintf("%d entries", len(hashes)),
				Actual:   "no chunk store file",
			}
		}
		u.skip(a)
		return nil
	}

	f, path, err := u.open(a)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)

	refs, err := frame.Index(bufio.NewReader(f))
	if err != nil {
		return frameError(a, path, err)
	}
	if len(refs) != len(hashes) {
		return &Error{
			Kind:     KindManifest,
			Artifact: a,
			Path:     path,
			Expected: fmt.Sprintf("%d entries", len(hashes)),
			Actual:   fmt.Sprintf("%d entries", len(refs)),
		}
	}

	plan := PlanChunkStore(hashes)
	u.cfg.Logger.Info("artifact upload started", map[string]any{
		"artifact": string(a),
		"entries":  len(plan),
	})

	var sent uint64
	err = RunWindows(ctx, plan, u.cfg.window(a, u.cfg.ChunkStoreConcurrency, &sent),
		func(ctx context.Context, c types.ChunkDescriptor) (int, error) {
			rec, err := frame.ReadRecordAt(f, refs[c.OrderID])
			if err != nil {
				return 0, frameError(a, path, err)
			}
			want := hex.EncodeToString(c.ContentHash)
			if !bytes.Equal(rec.Hash, c.ContentHash) {
				return 0, hashMismatch(a, path, want, hex.EncodeToString(rec.Hash))
			}
			if sum := sha256.Sum256(rec.Data); !bytes.Equal(sum[:], c.ContentHash) {
				return 0, hashMismatch(a, path, want, hex.EncodeToString(sum[:]))
			}
			kind := remote.KindFor(c)
			if err := u.cfg.Service.WriteSnapshotData(ctx, u.canisterID, u.snapshotID, kind, rec.Data); err != nil {
				return 0, transportError(ctx, a, err)
			}
			return len(rec.Data), nil
		},
		func(_ types.ChunkDescriptor, n int) error {
			sent += uint64(n)
			return nil
		},
	)
	if err != nil {
		return err
	}

	u.done(a, sent)
	return nil
}

// frameError classifies a chunk store decoding failure. A truncated frame
// is a short read; anything else means the file is not a chunk store.
func frameError(a types.Artifact, path string, err error) error {
	var fe *frame.FrameError
	if errors.As(err, &fe) {
		kind := KindManifest
		if fe.Kind == frame.ErrorPartial {
			kind = KindShortRead
		}
		return &Error{Kind: kind, Artifact: a, Filename: a.Filename(), Path: path, Err: err}
	}
	return ioError(a, path, err)
}

func (u *Uploader) skip(a types.Artifact) {
	u.cfg.Collector.IncArtifactSkipped()
	u.cfg.Logger.Info("artifact absent, skipped", map[string]any{"artifact": string(a)})
}

func (u *Uploader) done(a types.Artifact, sent uint64) {
	u.cfg.Collector.IncArtifactTransferred()
	u.cfg.Logger.Info("artifact upload completed", map[string]any{
		"artifact": string(a),
		"bytes":    sent,
	})
}
