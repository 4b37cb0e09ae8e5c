package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/canisnap/log"
	"github.com/pithecene-io/canisnap/manifest"
	"github.com/pithecene-io/canisnap/types"
)

// DownloadResult represents the result of a download.
type DownloadResult struct {
	// Folder is the snapshot folder that was created.
	Folder string
	// Manifest is the manifest written to Folder.
	Manifest *types.SnapshotManifest
	// Duration is the wall-clock duration of the download.
	Duration time.Duration
}

// UploadResult represents the result of an upload.
type UploadResult struct {
	// SnapshotID is the id returned by the metadata write. All data was
	// attached to it.
	SnapshotID types.SnapshotID
	// Manifest is the manifest that was uploaded.
	Manifest *types.SnapshotManifest
	// Bytes is the total size of the uploaded artifact files.
	Bytes uint64
	// Duration is the wall-clock duration of the upload.
	Duration time.Duration
}

// Orchestrator sequences the artifacts of one snapshot transfer.
type Orchestrator struct {
	cfg Config
}

// New creates an orchestrator. Returns error if no remote service is set.
func New(cfg Config) (*Orchestrator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg}, nil
}

// FolderName returns the name of the local folder holding snapshot id.
func FolderName(id types.SnapshotID) string {
	return id.String()
}

// Download fetches snapshot id of canisterID into a new folder under
// parentDir and writes its manifest.
//
// Execution flow:
//  1. Fail with FolderAlreadyExists if the folder is present (no remote call)
//  2. Create the folder and read the remote metadata
//  3. Download the four artifacts in fixed order
//  4. Write metadata.json
//
// On failure the folder and any partial files remain, without a manifest.
func (o *Orchestrator) Download(ctx context.Context, canisterID string, id types.SnapshotID, parentDir string) (*DownloadResult, error) {
	start := time.Now()
	o.cfg.Collector.IncTransferStarted()

	res, err := o.download(ctx, canisterID, id, parentDir)
	return finish(o, res, err, start, func(r *DownloadResult, d time.Duration) { r.Duration = d })
}

func (o *Orchestrator) download(ctx context.Context, canisterID string, id types.SnapshotID, parentDir string) (*DownloadResult, error) {
	if id.IsZero() {
		return nil, manifestError(errors.New("snapshot id is empty"))
	}
	folder := filepath.Join(parentDir, FolderName(id))

	if _, err := os.Lstat(folder); err == nil {
		return nil, &Error{Kind: KindFolderAlreadyExists, Path: folder}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, ioError("", folder, err)
	}
	if err := os.Mkdir(folder, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, &Error{Kind: KindFolderAlreadyExists, Path: folder}
		}
		return nil, ioError("", folder, err)
	}

	o.cfg.Logger.Info("download started", map[string]any{"folder": folder})

	md, err := o.cfg.Service.ReadSnapshotMetadata(ctx, canisterID, id)
	if err != nil {
		return nil, transportError(ctx, "", err)
	}
	if err := o.checkPlans(md); err != nil {
		return nil, err
	}

	d, err := NewDownloader(o.cfg, canisterID, id, folder)
	if err != nil {
		return nil, err
	}

	m := &types.SnapshotManifest{SnapshotID: id, Metadata: *md.Clone()}
	var mu sync.Mutex
	err = o.eachArtifact(ctx, func(ctx context.Context, a types.Artifact) error {
		var (
			file *types.SnapshotFile
			err  error
		)
		if a.IsLinear() {
			file, err = d.Linear(ctx, a, md.SizeOf(a))
		} else {
			file, err = d.ChunkStore(ctx, md.WasmChunkStore)
		}
		if err != nil {
			return err
		}
		mu.Lock()
		m.Data.Set(a, file)
		mu.Unlock()
		return nil
	})
	if err != nil {
		o.cfg.Logger.Warn("download failed, folder left without manifest", map[string]any{"folder": folder})
		return nil, err
	}

	if err := manifest.Write(folder, m); err != nil {
		return nil, ioError("", manifest.Path(folder), err)
	}
	o.cfg.Logger.Info("download completed", map[string]any{
		"folder": folder,
		"bytes":  m.Data.TotalBytes(),
	})
	return &DownloadResult{Folder: folder, Manifest: m}, nil
}

// Upload sends the snapshot in folder to canisterID. With a non-empty
// replace the remote snapshot of that id is overwritten; otherwise a new
// snapshot is created.
//
// Execution flow:
//  1. Read and check metadata.json
//  2. Verify every present artifact against the manifest (no remote call)
//  3. Write the metadata; the returned id addresses every data write
//  4. Upload the four artifacts in fixed order
func (o *Orchestrator) Upload(ctx context.Context, canisterID, folder string, replace types.SnapshotID) (*UploadResult, error) {
	start := time.Now()
	o.cfg.Collector.IncTransferStarted()

	res, err := o.upload(ctx, canisterID, folder, replace)
	return finish(o, res, err, start, func(r *UploadResult, d time.Duration) { r.Duration = d })
}

func (o *Orchestrator) upload(ctx context.Context, canisterID, folder string, replace types.SnapshotID) (*UploadResult, error) {
	m, err := o.Verify(folder)
	if err != nil {
		return nil, err
	}
	if err := o.checkPlans(&m.Metadata); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindCanceled, Err: err}
	}

	fields := map[string]any{"folder": folder}
	if !replace.IsZero() {
		fields["replace"] = replace.String()
	}
	o.cfg.Logger.Info("upload started", fields)

	id, err := o.cfg.Service.WriteSnapshotMetadata(ctx, canisterID, &m.Metadata, replace)
	if err != nil {
		return nil, transportError(ctx, "", err)
	}
	o.cfg.Collector.SetSnapshotID(id.String())

	cfg := o.cfg
	cfg.Logger = o.cfg.Logger.WithSnapshotID(id)
	u, err := NewUploader(cfg, canisterID, id, folder)
	if err != nil {
		return nil, err
	}

	err = o.eachArtifact(ctx, func(ctx context.Context, a types.Artifact) error {
		if a.IsLinear() {
			return u.Linear(ctx, a, m.Data.Get(a))
		}
		return u.ChunkStore(ctx, m.Data.Get(a), m.Metadata.WasmChunkStore)
	})
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("upload completed", map[string]any{"bytes": m.Data.TotalBytes()})
	return &UploadResult{SnapshotID: id, Manifest: m, Bytes: m.Data.TotalBytes()}, nil
}

// Verify reads the manifest in folder and checks every present artifact
// file against it. It issues no remote call.
func (o *Orchestrator) Verify(folder string) (*types.SnapshotManifest, error) {
	return VerifyFolder(folder, o.cfg.Logger)
}

// VerifyFolder is Verify without an orchestrator. logger may be nil.
func VerifyFolder(folder string, logger *log.Logger) (*types.SnapshotManifest, error) {
	if logger == nil {
		logger = log.Nop()
	}
	m, err := manifest.Read(folder)
	if err != nil {
		return nil, manifestError(err)
	}
	if err := checkConsistency(m); err != nil {
		return nil, err
	}
	for _, a := range m.Data.Present() {
		if err := VerifyFile(filepath.Join(folder, a.Filename()), a, m.Data.Get(a)); err != nil {
			return nil, err
		}
		logger.Debug("artifact verified", map[string]any{"artifact": string(a)})
	}
	return m, nil
}

// checkPlans rejects linear sizes the planner would refuse, before any
// artifact file or remote write.
func (o *Orchestrator) checkPlans(md *types.RemoteSnapshotMetadata) error {
	for _, a := range types.Artifacts() {
		if !a.IsLinear() {
			continue
		}
		if err := CheckLinear(a, md.SizeOf(a), o.cfg.ChunkSize); err != nil {
			return planError(a, err)
		}
	}
	return nil
}

// checkConsistency compares the metadata sizes with the file entries.
func checkConsistency(m *types.SnapshotManifest) error {
	for _, a := range types.Artifacts() {
		file := m.Data.Get(a)
		if a.IsLinear() {
			declared := m.Metadata.SizeOf(a)
			var recorded uint64
			if file != nil {
				recorded = file.Size
			}
			if declared != recorded {
				return &Error{
					Kind:     KindManifest,
					Artifact: a,
					Expected: fmt.Sprintf("%d bytes", declared),
					Actual:   fmt.Sprintf("%d bytes recorded", recorded),
				}
			}
			continue
		}
		if entries := len(m.Metadata.WasmChunkStore); (entries > 0) != (file != nil) {
			return &Error{
				Kind:     KindManifest,
				Artifact: a,
				Expected: fmt.Sprintf("%d entries", entries),
				Actual:   fmt.Sprintf("file present: %t", file != nil),
			}
		}
	}
	return nil
}

// eachArtifact runs fn for every artifact in fixed order, or concurrently
// when ParallelArtifacts is set. The first failure cancels the rest.
func (o *Orchestrator) eachArtifact(ctx context.Context, fn func(context.Context, types.Artifact) error) error {
	if !o.cfg.ParallelArtifacts {
		for _, a := range types.Artifacts() {
			if err := fn(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range types.Artifacts() {
		g.Go(func() error { return fn(gctx, a) })
	}
	return g.Wait()
}

// finish records the outcome of a transfer and stamps its duration.
func finish[R any](o *Orchestrator, res *R, err error, start time.Time, stamp func(*R, time.Duration)) (*R, error) {
	stats := o.cfg.Retry.Stats()
	o.cfg.Collector.AbsorbRetryStats(stats.Attempts, stats.Retries)
	if err != nil {
		o.cfg.Collector.IncTransferFailed()
		o.cfg.Logger.Error("transfer failed", map[string]any{
			"error":      err.Error(),
			"error_kind": KindOf(err).String(),
		})
		return nil, err
	}
	o.cfg.Collector.IncTransferCompleted()
	stamp(res, time.Since(start))
	return res, nil
}
