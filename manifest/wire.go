package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pithecene-io/canisnap/types"
)

// Wire types use pointers so that a missing key can be told apart from a
// zero value. Data entries use json.RawMessage so that a missing key can be
// told apart from an explicit null.

type wireManifest struct {
	SnapshotID *string       `json:"snapshotId"`
	Metadata   *wireMetadata `json:"metadata"`
	Data       *wireData     `json:"data"`
}

type wireMetadata struct {
	Source                    *string          `json:"source"`
	TakenAtTimestamp          *string          `json:"takenAtTimestamp"`
	WasmModuleSize            *string          `json:"wasmModuleSize"`
	Globals                   *[]wireGlobal    `json:"globals"`
	WasmMemorySize            *string          `json:"wasmMemorySize"`
	StableMemorySize          *string          `json:"stableMemorySize"`
	WasmChunkStore            *[]string        `json:"wasmChunkStore"`
	CanisterVersion           *string          `json:"canisterVersion"`
	CertifiedData             *string          `json:"certifiedData"`
	GlobalTimer               *wireGlobalTimer `json:"globalTimer"`
	OnLowWasmMemoryHookStatus *string          `json:"onLowWasmMemoryHookStatus"`
}

type wireGlobal struct {
	Type  *string `json:"type"`
	Value *string `json:"value"`
}

type wireGlobalTimer struct {
	Active *bool   `json:"active"`
	At     *string `json:"at"`
}

type wireData struct {
	WasmModule     json.RawMessage `json:"wasmModule"`
	WasmMemory     json.RawMessage `json:"wasmMemory"`
	StableMemory   json.RawMessage `json:"stableMemory"`
	WasmChunkStore json.RawMessage `json:"wasmChunkStore"`
}

func (d *wireData) entry(a types.Artifact) json.RawMessage {
	switch a {
	case types.ArtifactWasmModule:
		return d.WasmModule
	case types.ArtifactWasmMemory:
		return d.WasmMemory
	case types.ArtifactStableMemory:
		return d.StableMemory
	default:
		return d.WasmChunkStore
	}
}

func (d *wireData) setEntry(a types.Artifact, raw json.RawMessage) {
	switch a {
	case types.ArtifactWasmModule:
		d.WasmModule = raw
	case types.ArtifactWasmMemory:
		d.WasmMemory = raw
	case types.ArtifactStableMemory:
		d.StableMemory = raw
	default:
		d.WasmChunkStore = raw
	}
}

type wireFile struct {
	Filename *string `json:"filename"`
	Size     *string `json:"size"`
	Hash     *string `json:"hash"`
}

var jsonNull = json.RawMessage("null")

func ptr[T any](v T) *T {
	return &v
}

func u64(v uint64) *string {
	return ptr(strconv.FormatUint(v, 10))
}

// toWire converts m to its on-disk form. Entries Read would reject are
// refused here too.
func toWire(m *types.SnapshotManifest) (*wireManifest, error) {
	md := &m.Metadata

	globals := make([]wireGlobal, 0, len(md.Globals))
	for _, g := range md.Globals {
		globals = append(globals, wireGlobal{Type: ptr(string(g.Type)), Value: ptr(g.Value)})
	}
	hashes := make([]string, 0, len(md.WasmChunkStore))
	for _, h := range md.WasmChunkStore {
		hashes = append(hashes, hex.EncodeToString(h))
	}

	wm := &wireMetadata{
		Source:                    ptr(string(md.Source)),
		TakenAtTimestamp:          u64(md.TakenAtTimestamp),
		WasmModuleSize:            u64(md.WasmModuleSize),
		Globals:                   &globals,
		WasmMemorySize:            u64(md.WasmMemorySize),
		StableMemorySize:          u64(md.StableMemorySize),
		WasmChunkStore:            &hashes,
		CanisterVersion:           u64(md.CanisterVersion),
		CertifiedData:             ptr(hex.EncodeToString(md.CertifiedData)),
		OnLowWasmMemoryHookStatus: md.OnLowWasmMemoryHookStatus,
	}
	if md.GlobalTimer != nil {
		wm.GlobalTimer = &wireGlobalTimer{Active: ptr(md.GlobalTimer.Active), At: u64(md.GlobalTimer.At)}
	}

	data := &wireData{}
	for _, a := range types.Artifacts() {
		f := m.Data.Get(a)
		if f == nil {
			data.setEntry(a, jsonNull)
			continue
		}
		if f.Filename != a.Filename() {
			return nil, fmt.Errorf("%s entry names %q, want %q", a, f.Filename, a.Filename())
		}
		raw, err := json.Marshal(wireFile{
			Filename: ptr(f.Filename),
			Size:     u64(f.Size),
			Hash:     ptr(f.Hash.String()),
		})
		if err != nil {
			return nil, fmt.Errorf("%s entry: %w", a, err)
		}
		data.setEntry(a, raw)
	}

	return &wireManifest{
		SnapshotID: ptr(m.SnapshotID.String()),
		Metadata:   wm,
		Data:       data,
	}, nil
}

func fromWire(w *wireManifest) (*types.SnapshotManifest, error) {
	if w.SnapshotID == nil {
		return nil, invalid("snapshotId", "missing")
	}
	id, err := types.ParseSnapshotID(*w.SnapshotID)
	if err != nil {
		return nil, &ValidationError{Field: "snapshotId", Msg: "malformed", Err: err}
	}

	if w.Metadata == nil {
		return nil, invalid("metadata", "missing")
	}
	md, err := metadataFromWire(w.Metadata)
	if err != nil {
		return nil, err
	}

	if w.Data == nil {
		return nil, invalid("data", "missing")
	}
	out := &types.SnapshotManifest{SnapshotID: id, Metadata: *md}
	for _, a := range types.Artifacts() {
		f, err := fileFromWire(a, w.Data.entry(a))
		if err != nil {
			return nil, err
		}
		out.Data.Set(a, f)
	}
	return out, nil
}

func metadataFromWire(w *wireMetadata) (*types.RemoteSnapshotMetadata, error) {
	md := &types.RemoteSnapshotMetadata{}

	if w.Source == nil || *w.Source == "" {
		return nil, invalid("metadata.source", "missing")
	}
	md.Source = types.SnapshotSource(*w.Source)

	numbers := []struct {
		field string
		src   *string
		dst   *uint64
	}{
		{"metadata.takenAtTimestamp", w.TakenAtTimestamp, &md.TakenAtTimestamp},
		{"metadata.wasmModuleSize", w.WasmModuleSize, &md.WasmModuleSize},
		{"metadata.wasmMemorySize", w.WasmMemorySize, &md.WasmMemorySize},
		{"metadata.stableMemorySize", w.StableMemorySize, &md.StableMemorySize},
		{"metadata.canisterVersion", w.CanisterVersion, &md.CanisterVersion},
	}
	for _, n := range numbers {
		v, err := parseU64(n.field, n.src)
		if err != nil {
			return nil, err
		}
		*n.dst = v
	}

	if w.Globals == nil {
		return nil, invalid("metadata.globals", "missing")
	}
	md.Globals = make([]types.Global, 0, len(*w.Globals))
	for i, g := range *w.Globals {
		field := fmt.Sprintf("metadata.globals[%d]", i)
		if g.Type == nil || *g.Type == "" {
			return nil, invalid(field+".type", "missing")
		}
		if g.Value == nil {
			return nil, invalid(field+".value", "missing")
		}
		md.Globals = append(md.Globals, types.Global{Type: types.GlobalType(*g.Type), Value: *g.Value})
	}

	if w.WasmChunkStore == nil {
		return nil, invalid("metadata.wasmChunkStore", "missing")
	}
	md.WasmChunkStore = make([][]byte, 0, len(*w.WasmChunkStore))
	for i, h := range *w.WasmChunkStore {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) == 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("metadata.wasmChunkStore[%d]", i), Msg: "malformed hash", Err: err}
		}
		md.WasmChunkStore = append(md.WasmChunkStore, b)
	}

	if w.CertifiedData == nil {
		return nil, invalid("metadata.certifiedData", "missing")
	}
	certified, err := hex.DecodeString(*w.CertifiedData)
	if err != nil {
		return nil, &ValidationError{Field: "metadata.certifiedData", Msg: "malformed hex", Err: err}
	}
	md.CertifiedData = certified

	if w.GlobalTimer != nil {
		if w.GlobalTimer.Active == nil {
			return nil, invalid("metadata.globalTimer.active", "missing")
		}
		at, err := parseU64("metadata.globalTimer.at", w.GlobalTimer.At)
		if err != nil {
			return nil, err
		}
		md.GlobalTimer = &types.GlobalTimer{Active: *w.GlobalTimer.Active, At: at}
	}
	md.OnLowWasmMemoryHookStatus = w.OnLowWasmMemoryHookStatus

	return md, nil
}

func fileFromWire(a types.Artifact, raw json.RawMessage) (*types.SnapshotFile, error) {
	field := "data." + string(a)
	if len(raw) == 0 {
		return nil, invalid(field, "missing")
	}
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var w wireFile
	if err := dec.Decode(&w); err != nil {
		return nil, &ValidationError{Field: field, Msg: "malformed entry", Err: err}
	}

	if w.Filename == nil {
		return nil, invalid(field+".filename", "missing")
	}
	// Filenames are fixed per artifact; anything else could escape the folder.
	if *w.Filename != a.Filename() {
		return nil, invalid(field+".filename", fmt.Sprintf("got %q, want %q", *w.Filename, a.Filename()))
	}
	size, err := parseU64(field+".size", w.Size)
	if err != nil {
		return nil, err
	}
	if w.Hash == nil {
		return nil, invalid(field+".hash", "missing")
	}
	hash, err := types.ParseDigest(*w.Hash)
	if err != nil {
		return nil, &ValidationError{Field: field + ".hash", Msg: "malformed", Err: err}
	}

	return &types.SnapshotFile{Filename: *w.Filename, Size: size, Hash: hash}, nil
}

func parseU64(field string, s *string) (uint64, error) {
	if s == nil {
		return 0, invalid(field, "missing")
	}
	v, err := strconv.ParseUint(*s, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Msg: "not a decimal uint64 string", Err: err}
	}
	return v, nil
}
