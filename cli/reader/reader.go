package reader

import (
	"encoding/hex"
	"math"
	"time"

	"github.com/pithecene-io/canisnap/manifest"
	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/transfer"
	"github.com/pithecene-io/canisnap/types"
)

// InspectSnapshot reads the manifest in folder. Artifact files are not
// hashed; use VerifySnapshot for that.
func InspectSnapshot(folder string) (*SnapshotView, error) {
	m, err := manifest.Read(folder)
	if err != nil {
		return nil, err
	}
	return NewSnapshotView(folder, m), nil
}

// NewSnapshotView builds the inspect payload for a manifest.
func NewSnapshotView(folder string, m *types.SnapshotManifest) *SnapshotView {
	md := &m.Metadata
	v := &SnapshotView{
		SnapshotID:        m.SnapshotID.String(),
		Folder:            folder,
		Source:            string(md.Source),
		TakenAt:           timestamp(md.TakenAtTimestamp),
		CanisterVersion:   md.CanisterVersion,
		CertifiedData:     hex.EncodeToString(md.CertifiedData),
		Globals:           len(md.Globals),
		LowMemoryHook:     md.OnLowWasmMemoryHookStatus,
		ChunkStoreEntries: len(md.WasmChunkStore),
		TotalBytes:        m.Data.TotalBytes(),
	}
	if md.GlobalTimer != nil {
		v.GlobalTimer = &TimerView{Active: md.GlobalTimer.Active, At: md.GlobalTimer.At}
	}

	for _, a := range types.Artifacts() {
		av := ArtifactView{Artifact: string(a), Filename: a.Filename()}
		if f := m.Data.Get(a); f != nil {
			av.Present = true
			av.Size = f.Size
			av.Hash = f.Hash.String()
		}
		v.Artifacts = append(v.Artifacts, av)
	}
	return v
}

// timestamp converts nanoseconds since the Unix epoch. Zero and values
// past the int64 range have no time.
func timestamp(ns uint64) *time.Time {
	if ns == 0 || ns > math.MaxInt64 {
		return nil
	}
	t := time.Unix(0, int64(ns)).UTC()
	return &t
}

// VerifySnapshot checks every artifact file of folder against its manifest.
// A failed check is reported in the view; err is returned alongside so the
// caller can pick an exit code.
func VerifySnapshot(folder string) (*VerifyView, error) {
	v := &VerifyView{Folder: folder}

	m, err := transfer.VerifyFolder(folder, nil)
	if err != nil {
		v.Status = StatusFailed
		v.ErrorKind = transfer.KindOf(err).String()
		v.Error = err.Error()
		return v, err
	}

	v.Status = StatusVerified
	v.SnapshotID = m.SnapshotID.String()
	v.Artifacts = len(m.Data.Present())
	v.TotalBytes = m.Data.TotalBytes()
	return v, nil
}

// NewMetricsView converts a metrics snapshot to its rendered form.
func NewMetricsView(s metrics.Snapshot) *MetricsView {
	return &MetricsView{
		Operation:            s.Operation,
		Backend:              s.Backend,
		RetryPolicy:          s.RetryPolicy,
		CanisterID:           s.CanisterID,
		SnapshotID:           s.SnapshotID,
		TransfersStarted:     s.TransfersStarted,
		TransfersCompleted:   s.TransfersCompleted,
		TransfersFailed:      s.TransfersFailed,
		ArtifactsTransferred: s.ArtifactsTransferred,
		ArtifactsSkipped:     s.ArtifactsSkipped,
		WindowsCompleted:     s.WindowsCompleted,
		ChunksRead:           s.ChunksRead,
		ChunksWritten:        s.ChunksWritten,
		BytesRead:            s.BytesRead,
		BytesWritten:         s.BytesWritten,
		RemoteCallSuccess:    s.RemoteCallSuccess,
		RemoteCallFailure:    s.RemoteCallFailure,
		FailuresByKind:       s.FailuresByKind,
		Attempts:             s.Attempts,
		Retries:              s.Retries,
	}
}
