package transfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/canisnap/frame"
	"github.com/pithecene-io/canisnap/manifest"
	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/remote"
	"github.com/pithecene-io/canisnap/remote/storesvc"
	"github.com/pithecene-io/canisnap/types"
)

const testCanister = "rrkah-fqaaa-aaaaa-aaaaq-cai"

var testSnapshotID = types.SnapshotID{0x00, 0x00, 0x00, 0x00, 0x01, 0x10, 0x00, 0x01}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7) + seed
	}
	return out
}

type fixture struct {
	linear map[types.Artifact][]byte
	chunks [][]byte
}

// seed stores a snapshot with a three-chunk module, a ten-chunk heap, no
// stable memory and three chunk store entries (at a 1000 byte chunk size).
func seed(svc *remote.StubService) fixture {
	fx := fixture{
		linear: map[types.Artifact][]byte{
			types.ArtifactWasmModule: pattern(2_500, 1),
			types.ArtifactWasmMemory: pattern(10_000, 2),
		},
		chunks: [][]byte{[]byte("chunk-a"), pattern(1_500, 3), []byte("chunk-c")},
	}
	svc.Seed(testCanister, testSnapshotID, fx.linear, fx.chunks)
	return fx
}

func newTestOrchestrator(t *testing.T, svc remote.Service, mods ...func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{Service: svc, ChunkSize: 1_000}
	for _, mod := range mods {
		mod(&cfg)
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return data
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected %s to be absent, stat err = %v", path, err)
	}
}

func TestNew_RequiresService(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without a remote service")
	}
}

func TestDownload_RoundTrip(t *testing.T) {
	svc := remote.NewStubService()
	fx := seed(svc)
	parent := t.TempDir()

	res, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, parent)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	wantFolder := filepath.Join(parent, "0x0000000001100001")
	if res.Folder != wantFolder {
		t.Errorf("Folder = %s, want %s", res.Folder, wantFolder)
	}

	for a, want := range fx.linear {
		got := readFile(t, filepath.Join(res.Folder, a.Filename()))
		if !bytes.Equal(got, want) {
			t.Errorf("%s: content differs (%d bytes, want %d)", a, len(got), len(want))
		}
		file := res.Manifest.Data.Get(a)
		if file == nil || file.Hash != types.SumBytes(want) || file.Size != uint64(len(want)) {
			t.Errorf("%s: manifest entry %+v", a, file)
		}
	}

	// Absent artifact: no file, null entry.
	assertNoFile(t, filepath.Join(res.Folder, types.ArtifactStableMemory.Filename()))
	if res.Manifest.Data.Get(types.ArtifactStableMemory) != nil {
		t.Error("stable memory entry should be null")
	}

	// Chunk store: one frame per entry, in list order.
	f, err := os.Open(filepath.Join(res.Folder, types.ArtifactWasmChunkStore.Filename()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	dec := frame.NewDecoder(bufio.NewReader(f))
	md := svc.Metadata(testCanister, testSnapshotID)
	for i, want := range fx.chunks {
		rec, err := dec.ReadRecord()
		if err != nil {
			t.Fatalf("ReadRecord %d failed: %v", i, err)
		}
		if !bytes.Equal(rec.Data, want) || !bytes.Equal(rec.Hash, md.WasmChunkStore[i]) {
			t.Errorf("record %d mismatch", i)
		}
	}

	// Manifest on disk matches the returned one.
	onDisk, err := manifest.Read(res.Folder)
	if err != nil {
		t.Fatalf("manifest.Read failed: %v", err)
	}
	if !onDisk.SnapshotID.Equal(testSnapshotID) {
		t.Errorf("SnapshotID = %s", onDisk.SnapshotID)
	}
	if onDisk.Metadata.WasmMemorySize != 10_000 || onDisk.Metadata.CanisterVersion != md.CanisterVersion {
		t.Errorf("metadata not preserved: %+v", onDisk.Metadata)
	}
}

func TestDownload_FolderAlreadyExists(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	parent := t.TempDir()
	if err := os.Mkdir(filepath.Join(parent, testSnapshotID.String()), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, parent)
	if !errors.Is(err, ErrFolderAlreadyExists) {
		t.Fatalf("expected ErrFolderAlreadyExists, got %v", err)
	}
	if n := svc.TotalCalls(); n != 0 {
		t.Errorf("expected no remote calls, got %d", n)
	}
}

func TestDownload_TransportErrorAborts(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	var chunkReads atomic.Int64
	svc.Fail = func(op string, kind remote.DataKind) error {
		switch k := kind.(type) {
		case remote.LinearRange:
			if k.Artifact == types.ArtifactWasmMemory && k.Offset == 4_000 {
				return remote.NewCallError(remote.ErrTimeout, op, k.String(), errors.New("deadline"))
			}
		case remote.ChunkStoreEntry:
			chunkReads.Add(1)
		}
		return nil
	}
	parent := t.TempDir()

	_, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, parent)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, remote.ErrTimeout) {
		t.Errorf("expected remote classification to survive, got %v", err)
	}
	assertNoFile(t, manifest.Path(filepath.Join(parent, testSnapshotID.String())))
	if n := chunkReads.Load(); n != 0 {
		t.Errorf("later artifact was requested %d times after the failure", n)
	}
}

func TestDownload_NotFound(t *testing.T) {
	svc := remote.NewStubService()
	_, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if !errors.Is(err, ErrTransport) || !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected transport not-found error, got %v", err)
	}
}

// tamperService corrupts data returned by the wrapped service.
type tamperService struct {
	remote.Service
	tamper func(kind remote.DataKind, data []byte) []byte
}

func (s *tamperService) ReadSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind remote.DataKind) ([]byte, error) {
	data, err := s.Service.ReadSnapshotData(ctx, canisterID, id, kind)
	if err != nil {
		return nil, err
	}
	return s.tamper(kind, data), nil
}

// oversizeService declares a heap larger than any plan allows.
type oversizeService struct {
	remote.Service
}

func (s *oversizeService) ReadSnapshotMetadata(ctx context.Context, canisterID string, id types.SnapshotID) (*types.RemoteSnapshotMetadata, error) {
	md, err := s.Service.ReadSnapshotMetadata(ctx, canisterID, id)
	if err != nil {
		return nil, err
	}
	md.WasmMemorySize = math.MaxUint64
	return md, nil
}

func TestDownload_OversizeDeclarationRejected(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	parent := t.TempDir()

	_, err := newTestOrchestrator(t, &oversizeService{Service: svc}).Download(t.Context(), testCanister, testSnapshotID, parent)
	if !errors.Is(err, ErrSizeMismatch) || !errors.Is(err, ErrPlanTooLarge) {
		t.Fatalf("expected plan size error, got %v", err)
	}
	if svc.DataReads != 0 {
		t.Errorf("expected no data reads, got %d", svc.DataReads)
	}
	folder := filepath.Join(parent, testSnapshotID.String())
	assertNoFile(t, filepath.Join(folder, types.ArtifactWasmModule.Filename()))
	assertNoFile(t, filepath.Join(folder, types.ArtifactWasmMemory.Filename()))
}

func TestDownload_ShortChunkIsSizeMismatch(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	tampered := &tamperService{Service: svc, tamper: func(kind remote.DataKind, data []byte) []byte {
		if r, ok := kind.(remote.LinearRange); ok && r.Artifact == types.ArtifactWasmModule && r.Offset == 1_000 {
			return data[:10]
		}
		return data
	}}

	_, err := newTestOrchestrator(t, tampered).Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestDownload_ChunkStoreEntryHashMismatch(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	tampered := &tamperService{Service: svc, tamper: func(kind remote.DataKind, data []byte) []byte {
		if _, ok := kind.(remote.ChunkStoreEntry); ok {
			out := append([]byte(nil), data...)
			out[0] ^= 0xff
			return out
		}
		return data
	}}

	_, err := newTestOrchestrator(t, tampered).Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if KindOf(err) != KindHashMismatch {
		t.Errorf("kind = %s", KindOf(err))
	}
}

func TestDownload_CanceledBetweenWindows(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	o := newTestOrchestrator(t, svc, func(c *Config) {
		c.LinearConcurrency = 2
		c.OnProgress = func(p types.Progress) {
			if p.Artifact == types.ArtifactWasmMemory && p.Done == 2 {
				cancel()
			}
		}
	})

	_, err := o.Download(ctx, testCanister, testSnapshotID, t.TempDir())
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	// Module (3 reads) + first heap window (2 reads).
	if svc.DataReads != 5 {
		t.Errorf("DataReads = %d, want 5", svc.DataReads)
	}
}

func TestDownload_Progress(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)

	var events []types.Progress
	o := newTestOrchestrator(t, svc, func(c *Config) {
		c.LinearConcurrency = 4
		c.ChunkStoreConcurrency = 2
		c.OnProgress = func(p types.Progress) { events = append(events, p) }
	})
	if _, err := o.Download(t.Context(), testCanister, testSnapshotID, t.TempDir()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	// module: 1 window, heap: 3 windows, chunk store: 2 windows.
	if len(events) != 6 {
		t.Fatalf("got %d progress events, want 6: %+v", len(events), events)
	}
	last := events[3]
	if last.Artifact != types.ArtifactWasmMemory || last.Done != 10 || last.Total != 10 || last.Bytes != 10_000 {
		t.Errorf("final heap progress = %+v", last)
	}
	cs := events[5]
	if cs.Artifact != types.ArtifactWasmChunkStore || cs.Done != 3 || cs.Total != 3 {
		t.Errorf("final chunk store progress = %+v", cs)
	}
}

func TestDownload_ParallelArtifactsMatchesSequential(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)

	seqRes, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if err != nil {
		t.Fatalf("sequential Download failed: %v", err)
	}
	parRes, err := newTestOrchestrator(t, svc, func(c *Config) { c.ParallelArtifacts = true }).
		Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if err != nil {
		t.Fatalf("parallel Download failed: %v", err)
	}

	for _, a := range types.Artifacts() {
		s, p := seqRes.Manifest.Data.Get(a), parRes.Manifest.Data.Get(a)
		if (s == nil) != (p == nil) || (s != nil && *s != *p) {
			t.Errorf("%s: sequential %+v, parallel %+v", a, s, p)
		}
	}
}

func TestDownload_Metrics(t *testing.T) {
	svc := remote.NewStubService()
	seed(svc)
	collector := metrics.NewCollector("download", "stub", "strict", testCanister, testSnapshotID.String())

	o := newTestOrchestrator(t, remote.NewInstrumentedService(svc, collector), func(c *Config) {
		c.Collector = collector
	})
	if _, err := o.Download(t.Context(), testCanister, testSnapshotID, t.TempDir()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	s := collector.Snapshot()
	checks := []struct {
		name      string
		got, want int64
	}{
		{"TransfersStarted", s.TransfersStarted, 1},
		{"TransfersCompleted", s.TransfersCompleted, 1},
		{"ArtifactsTransferred", s.ArtifactsTransferred, 3},
		{"ArtifactsSkipped", s.ArtifactsSkipped, 1},
		{"ChunksRead", s.ChunksRead, 16},
		{"Attempts", s.Attempts, 16},
	}
	for _, ch := range checks {
		if ch.got != ch.want {
			t.Errorf("%s = %d, want %d", ch.name, ch.got, ch.want)
		}
	}
}

// download fetches the seeded snapshot and returns its folder.
func download(t *testing.T, svc remote.Service) *DownloadResult {
	t.Helper()
	res, err := newTestOrchestrator(t, svc).Download(t.Context(), testCanister, testSnapshotID, t.TempDir())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	return res
}

func TestUpload_RoundTrip(t *testing.T) {
	src := remote.NewStubService()
	fx := seed(src)
	res := download(t, src)

	dst := remote.NewStubService()
	up, err := newTestOrchestrator(t, dst).Upload(t.Context(), testCanister, res.Folder, nil)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	wantID := types.SnapshotID{0, 0, 0, 0, 0, 0, 0, 1}
	if !up.SnapshotID.Equal(wantID) {
		t.Errorf("SnapshotID = %s, want %s", up.SnapshotID, wantID)
	}
	for a, want := range fx.linear {
		if got := dst.Linear(testCanister, up.SnapshotID, a); !bytes.Equal(got, want) {
			t.Errorf("%s: remote content differs", a)
		}
	}
	for _, c := range fx.chunks {
		sum := types.SumBytes(c)
		if got, ok := dst.Chunk(testCanister, up.SnapshotID, sum[:]); !ok || !bytes.Equal(got, c) {
			t.Errorf("chunk %s missing or different", sum.Short())
		}
	}

	md := dst.Metadata(testCanister, up.SnapshotID)
	if md.Source != types.SourceMetadataUpload {
		t.Errorf("Source = %s, want %s", md.Source, types.SourceMetadataUpload)
	}
	if md.WasmModuleSize != 2_500 || len(md.WasmChunkStore) != 3 {
		t.Errorf("metadata not uploaded: %+v", md)
	}
	// Metadata first, then 3 module + 10 heap + 3 chunk writes.
	if dst.MetadataWrites != 1 || dst.DataWrites != 16 {
		t.Errorf("writes = %d/%d, want 1/16", dst.MetadataWrites, dst.DataWrites)
	}
	if up.Bytes != res.Manifest.Data.TotalBytes() {
		t.Errorf("Bytes = %d, want %d", up.Bytes, res.Manifest.Data.TotalBytes())
	}
}

func TestUpload_DownloadIsIdempotent(t *testing.T) {
	src := remote.NewStubService()
	seed(src)
	first := download(t, src)

	dst := remote.NewStubService()
	o := newTestOrchestrator(t, dst)
	up, err := o.Upload(t.Context(), testCanister, first.Folder, nil)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	second, err := o.Download(t.Context(), testCanister, up.SnapshotID, t.TempDir())
	if err != nil {
		t.Fatalf("second Download failed: %v", err)
	}

	for _, a := range types.Artifacts() {
		f1, f2 := first.Manifest.Data.Get(a), second.Manifest.Data.Get(a)
		if (f1 == nil) != (f2 == nil) {
			t.Fatalf("%s: presence differs", a)
		}
		if f1 != nil && (f1.Hash != f2.Hash || f1.Size != f2.Size) {
			t.Errorf("%s: %+v vs %+v", a, f1, f2)
		}
	}
}

func TestUpload_CorruptArtifactMakesNoRemoteCall(t *testing.T) {
	src := remote.NewStubService()
	seed(src)
	res := download(t, src)

	heap := filepath.Join(res.Folder, types.ArtifactWasmMemory.Filename())
	data := readFile(t, heap)
	data[5_000] ^= 0x01
	if err := os.WriteFile(heap, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := remote.NewStubService()
	_, err := newTestOrchestrator(t, dst).Upload(t.Context(), testCanister, res.Folder, nil)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) || te.Artifact != types.ArtifactWasmMemory || te.Expected == te.Actual {
		t.Errorf("error should name heap with differing digests: %v", err)
	}
	if n := dst.TotalCalls(); n != 0 {
		t.Errorf("expected no remote calls, got %d", n)
	}
}

func TestUpload_Replace(t *testing.T) {
	svc := remote.NewStubService()
	fx := seed(svc)
	res := download(t, svc)

	up, err := newTestOrchestrator(t, svc).Upload(t.Context(), testCanister, res.Folder, testSnapshotID)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !up.SnapshotID.Equal(testSnapshotID) {
		t.Errorf("SnapshotID = %s, want replaced id %s", up.SnapshotID, testSnapshotID)
	}
	if got := svc.Linear(testCanister, testSnapshotID, types.ArtifactWasmMemory); !bytes.Equal(got, fx.linear[types.ArtifactWasmMemory]) {
		t.Error("replaced snapshot heap differs")
	}
}

func TestUpload_InconsistentManifest(t *testing.T) {
	src := remote.NewStubService()
	seed(src)
	res := download(t, src)

	m, err := manifest.Read(res.Folder)
	if err != nil {
		t.Fatal(err)
	}
	m.Metadata.WasmMemorySize++
	if err := os.Remove(manifest.Path(res.Folder)); err != nil {
		t.Fatal(err)
	}
	if err := manifest.Write(res.Folder, m); err != nil {
		t.Fatal(err)
	}

	dst := remote.NewStubService()
	_, err = newTestOrchestrator(t, dst).Upload(t.Context(), testCanister, res.Folder, nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("expected ErrManifest, got %v", err)
	}
	if dst.TotalCalls() != 0 {
		t.Errorf("expected no remote calls, got %d", dst.TotalCalls())
	}
}

func TestUpload_MissingManifest(t *testing.T) {
	_, err := newTestOrchestrator(t, remote.NewStubService()).Upload(t.Context(), testCanister, t.TempDir(), nil)
	if !errors.Is(err, ErrManifest) {
		t.Fatalf("expected ErrManifest, got %v", err)
	}
}

func TestUpload_MetadataWriteFails(t *testing.T) {
	src := remote.NewStubService()
	seed(src)
	res := download(t, src)

	dst := remote.NewStubService()
	dst.Fail = func(op string, _ remote.DataKind) error {
		if op == remote.OpWriteMetadata {
			return remote.NewCallError(remote.ErrPermissionDenied, op, testCanister, errors.New("not a controller"))
		}
		return nil
	}
	_, err := newTestOrchestrator(t, dst).Upload(t.Context(), testCanister, res.Folder, nil)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, remote.ErrPermissionDenied) {
		t.Fatalf("expected permission transport error, got %v", err)
	}
	if dst.DataWrites != 0 {
		t.Errorf("data written without metadata: %d", dst.DataWrites)
	}
}

func TestVerify(t *testing.T) {
	src := remote.NewStubService()
	seed(src)
	res := download(t, src)

	o := newTestOrchestrator(t, remote.NewStubService())
	m, err := o.Verify(res.Folder)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !m.SnapshotID.Equal(testSnapshotID) {
		t.Errorf("SnapshotID = %s", m.SnapshotID)
	}

	if err := os.Truncate(filepath.Join(res.Folder, types.ArtifactWasmModule.Filename()), 100); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Verify(res.Folder); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestUploader_ShortRead(t *testing.T) {
	svc := remote.NewStubService()
	id, err := svc.WriteSnapshotMetadata(t.Context(), testCanister, &types.RemoteSnapshotMetadata{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	a := types.ArtifactStableMemory
	file := writeArtifact(t, dir, a, pattern(1_500, 9))
	file.Size = 2_500

	u, err := NewUploader(Config{Service: svc, ChunkSize: 1_000}, testCanister, id, dir)
	if err != nil {
		t.Fatal(err)
	}
	err = u.Linear(t.Context(), a, file)
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestUploader_ChunkStoreOrderMismatch(t *testing.T) {
	svc := remote.NewStubService()
	id, err := svc.WriteSnapshotMetadata(t.Context(), testCanister, &types.RemoteSnapshotMetadata{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	a, b := []byte("first"), []byte("second")
	ha, hb := types.SumBytes(a), types.SumBytes(b)

	// File holds the entries in the opposite order of the hash list.
	var buf bytes.Buffer
	enc := frame.NewEncoder(&buf)
	for _, rec := range []*frame.Record{{Hash: hb[:], Data: b}, {Hash: ha[:], Data: a}} {
		if _, err := enc.WriteRecord(rec); err != nil {
			t.Fatal(err)
		}
	}
	dir := t.TempDir()
	file := writeArtifact(t, dir, types.ArtifactWasmChunkStore, buf.Bytes())

	u, err := NewUploader(Config{Service: svc}, testCanister, id, dir)
	if err != nil {
		t.Fatal(err)
	}
	err = u.ChunkStore(t.Context(), file, [][]byte{ha[:], hb[:]})
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}

	err = u.ChunkStore(t.Context(), file, [][]byte{ha[:]})
	if !errors.Is(err, ErrManifest) {
		t.Errorf("expected ErrManifest for entry count mismatch, got %v", err)
	}

	err = u.ChunkStore(t.Context(), nil, [][]byte{ha[:]})
	if !errors.Is(err, ErrManifest) {
		t.Errorf("expected ErrManifest for missing chunk store, got %v", err)
	}
}

func TestTransfer_StoreBackedEndToEnd(t *testing.T) {
	src := remote.NewStubService()
	fx := seed(src)
	res := download(t, src)

	store := storesvc.New(lode.NewMemory())
	o := newTestOrchestrator(t, store, func(c *Config) { c.ChunkSize = 700 })
	up, err := o.Upload(t.Context(), testCanister, res.Folder, nil)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Downloading with a different chunk size reassembles the same bytes.
	back, err := newTestOrchestrator(t, store, func(c *Config) { c.ChunkSize = 1_300 }).
		Download(t.Context(), testCanister, up.SnapshotID, t.TempDir())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	for a, want := range fx.linear {
		if got := readFile(t, filepath.Join(back.Folder, a.Filename())); !bytes.Equal(got, want) {
			t.Errorf("%s: content differs after store round trip", a)
		}
	}
	if back.Manifest.Metadata.Source != types.SourceMetadataUpload {
		t.Errorf("Source = %s", back.Manifest.Metadata.Source)
	}
	for _, a := range types.Artifacts() {
		f1, f2 := res.Manifest.Data.Get(a), back.Manifest.Data.Get(a)
		if (f1 == nil) != (f2 == nil) || (f1 != nil && f1.Hash != f2.Hash) {
			t.Errorf("%s: hash changed across store round trip", a)
		}
	}
}
