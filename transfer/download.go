package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pithecene-io/canisnap/frame"
	"github.com/pithecene-io/canisnap/iox"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/types"
)

// Downloader fetches the artifacts of one remote snapshot into a folder.
type Downloader struct {
	cfg        Config
	canisterID string
	snapshotID types.SnapshotID
	folder     string
}

// NewDownloader creates a downloader writing into folder, which must exist.
func NewDownloader(cfg Config, canisterID string, id types.SnapshotID, folder string) (*Downloader, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Downloader{cfg: cfg, canisterID: canisterID, snapshotID: id, folder: folder}, nil
}

// create opens the artifact file exclusively. An existing file is an error.
func (d *Downloader) create(a types.Artifact) (*os.File, string, error) {
	path := filepath.Join(d.folder, a.Filename())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, path, ioError(a, path, err)
	}
	return f, path, nil
}

// Linear downloads a linear artifact of declaredSize bytes. A zero size
// means the artifact is absent: no file is created and nil is returned.
func (d *Downloader) Linear(ctx context.Context, a types.Artifact, declaredSize uint64) (*types.SnapshotFile, error) {
	if declaredSize == 0 {
		d.skip(a)
		return nil, nil
	}

	plan, err := PlanLinear(a, declaredSize, d.cfg.ChunkSize)
	if err != nil {
		return nil, planError(a, err)
	}

	f, path, err := d.create(a)
	if err != nil {
		return nil, err
	}
	hw := NewHashingWriter(f)

	d.cfg.Logger.Info("artifact download started", map[string]any{
		"artifact": string(a),
		"size":     declaredSize,
		"chunks":   len(plan),
	})

	var written uint64
	runErr := RunWindows(ctx, plan, d.cfg.window(a, d.cfg.LinearConcurrency, &written),
		func(ctx context.Context, c types.ChunkDescriptor) ([]byte, error) {
			data, err := d.cfg.Service.ReadSnapshotData(ctx, d.canisterID, d.snapshotID, remote.KindFor(c))
			if err != nil {
				return nil, transportError(ctx, a, err)
			}
			if uint64(len(data)) != c.Size {
				return nil, sizeMismatch(a, path, c.Size, uint64(len(data)))
			}
			return data, nil
		},
		func(_ types.ChunkDescriptor, data []byte) error {
			if _, err := hw.Write(data); err != nil {
				return ioError(a, path, err)
			}
			written += uint64(len(data))
			return nil
		},
	)

	// File remains on disk on failure; the manifest never records it.
	closeErr := iox.SyncClose(f)
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, ioError(a, path, closeErr)
	}
	if hw.Written() != declaredSize {
		return nil, sizeMismatch(a, path, declaredSize, hw.Written())
	}

	d.done(a, hw.Written())
	return &types.SnapshotFile{Filename: a.Filename(), Size: declaredSize, Hash: hw.Sum()}, nil
}

// ChunkStore downloads every entry of the chunk store in list order and
// writes each as a frame. Every entry must hash to its address. An empty
// list means the artifact is absent.
func (d *Downloader) ChunkStore(ctx context.Context, hashes [][]byte) (*types.SnapshotFile, error) {
	a := types.ArtifactWasmChunkStore
	if len(hashes) == 0 {
		d.skip(a)
		return nil, nil
	}

	f, path, err := d.create(a)
	if err != nil {
		return nil, err
	}
	hw := NewHashingWriter(f)

	plan := PlanChunkStore(hashes)
	d.cfg.Logger.Info("artifact download started", map[string]any{
		"artifact": string(a),
		"entries":  len(plan),
	})

	// expected is the sum of encoded frame lengths; the chunk store has no
	// size known up front.
	var expected, payload uint64
	runErr := RunWindows(ctx, plan, d.cfg.window(a, d.cfg.ChunkStoreConcurrency, &payload),
		func(ctx context.Context, c types.ChunkDescriptor) ([]byte, error) {
			data, err := d.cfg.Service.ReadSnapshotData(ctx, d.canisterID, d.snapshotID, remote.KindFor(c))
			if err != nil {
				return nil, transportError(ctx, a, err)
			}
			if sum := sha256.Sum256(data); !bytes.Equal(sum[:], c.ContentHash) {
				return nil, hashMismatch(a, path, hex.EncodeToString(c.ContentHash), hex.EncodeToString(sum[:]))
			}
			return data, nil
		},
		func(c types.ChunkDescriptor, data []byte) error {
			buf, err := frame.Encode(&frame.Record{Hash: c.ContentHash, Data: data})
			if err != nil {
				return ioError(a, path, err)
			}
			if _, err := hw.Write(buf); err != nil {
				return ioError(a, path, err)
			}
			expected += uint64(len(buf))
			payload += uint64(len(data))
			return nil
		},
	)

	closeErr := iox.SyncClose(f)
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, ioError(a, path, closeErr)
	}
	if hw.Written() != expected {
		return nil, sizeMismatch(a, path, expected, hw.Written())
	}

	d.done(a, hw.Written())
	return &types.SnapshotFile{Filename: a.Filename(), Size: hw.Written(), Hash: hw.Sum()}, nil
}

func (d *Downloader) skip(a types.Artifact) {
	d.cfg.Collector.IncArtifactSkipped()
	d.cfg.Logger.Info("artifact absent, skipped", map[string]any{"artifact": string(a)})
}

func (d *Downloader) done(a types.Artifact, size uint64) {
	d.cfg.Collector.IncArtifactTransferred()
	d.cfg.Logger.Info("artifact download completed", map[string]any{
		"artifact": string(a),
		"size":     size,
	})
}
